// Package intersect turns uploaded address lists into canonical token
// sequences and computes the tokens shared by every list. It performs no
// I/O; staging and HTTP concerns live in the finder and server packages.
package intersect
