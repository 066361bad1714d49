// Package server implements the HTTP boundary of the common-addresses
// service. It decodes multipart uploads, hands them to the finder, maps
// finder errors to JSON responses, and serves health, run history and
// metrics endpoints.
package server
