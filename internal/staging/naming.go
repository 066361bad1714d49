package staging

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// maxNameLen leaves room for the timestamp prefix and the formatted suffix
// inside a 255-byte file name.
const maxNameLen = 200

var (
	jsonNamePattern = regexp.MustCompile(`(?i)json`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
	digitRun        = regexp.MustCompile(`\d+`)
)

// SanitizeFilename removes potentially dangerous characters from filenames
func SanitizeFilename(filename string) string {
	// Remove path separators
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")
	filename = strings.ReplaceAll(filename, "\x00", "")

	// Trim spaces and dots from start/end
	filename = strings.Trim(filename, " .")

	if len(filename) > maxNameLen {
		ext := filepath.Ext(filename)
		if len(ext) >= maxNameLen/2 {
			ext = ""
		}
		stem := truncateUTF8(filename[:len(filename)-len(filepath.Ext(filename))], maxNameLen-len(ext))
		filename = stem + ext
	}

	if filename == "" {
		filename = "unnamed"
	}
	return filename
}

func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ArtifactName builds a collision-free name for an uploaded original:
// "<unix-millis>_<8 hex>_<base><ext>". JSON-looking base names lose their
// whitespace and digits, which keeps exported "json (2).json" style names
// tidy.
func ArtifactName(original string, now time.Time) string {
	name := SanitizeFilename(original)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	if jsonNamePattern.MatchString(base) {
		base = whitespaceRun.ReplaceAllString(base, "")
		base = digitRun.ReplaceAllString(base, "")
	}

	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return strconv.FormatInt(now.UnixMilli(), 10) + "_" + suffix + "_" + base + ext
}

// FormattedName is the name of the formatted copy derived from a staged
// original.
func FormattedName(stored string) string {
	return strings.TrimSuffix(stored, filepath.Ext(stored)) + "_formatted.txt"
}
