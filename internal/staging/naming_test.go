package staging

import (
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"list.txt", "list.txt"},
		{"../../etc/passwd", "_.._etc_passwd"},
		{`dir\file.json`, "dir_file.json"},
		{"a\x00b.txt", "ab.txt"},
		{"  .hidden. ", "hidden"},
		{"", "unnamed"},
		{"...", "unnamed"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeFilename_Truncates(t *testing.T) {
	long := strings.Repeat("é", 300) + ".json"
	got := SanitizeFilename(long)
	if len(got) > maxNameLen {
		t.Fatalf("len = %d, want <= %d", len(got), maxNameLen)
	}
	if !strings.HasSuffix(got, ".json") {
		t.Errorf("extension lost: %q", got[len(got)-10:])
	}
	if !strings.HasPrefix(got, "é") || strings.ContainsRune(got, '�') {
		t.Errorf("truncation split a rune")
	}
}

var artifactPattern = regexp.MustCompile(`^1700000000123_[0-9a-f]{8}_(.*)$`)

func TestArtifactName(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	tests := []struct {
		original string
		wantTail string
	}{
		{"addresses 2.txt", "addresses 2.txt"},
		{"my json 2024.json", "myjson.json"},
		{"JSON export 7.json.txt", "JSONexport.json.txt"},
		{"wallets.json", "wallets.json"},
		{"../x.txt", "_x.txt"},
	}
	for _, tt := range tests {
		got := ArtifactName(tt.original, now)
		m := artifactPattern.FindStringSubmatch(got)
		if m == nil {
			t.Errorf("ArtifactName(%q) = %q, does not match pattern", tt.original, got)
			continue
		}
		if m[1] != tt.wantTail {
			t.Errorf("ArtifactName(%q) tail = %q, want %q", tt.original, m[1], tt.wantTail)
		}
	}
}

func TestArtifactName_Unique(t *testing.T) {
	now := time.Now()
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		name := ArtifactName("same.txt", now)
		if seen[name] {
			t.Fatalf("duplicate artifact name %q", name)
		}
		seen[name] = true
	}
}

func TestFormattedName(t *testing.T) {
	tests := map[string]string{
		"1_ab_list.txt":     "1_ab_list_formatted.txt",
		"1_ab_wallets.json": "1_ab_wallets_formatted.txt",
		"1_ab_x.json.txt":   "1_ab_x.json_formatted.txt",
		"1_ab_noext":        "1_ab_noext_formatted.txt",
	}
	for in, want := range tests {
		if got := FormattedName(in); got != want {
			t.Errorf("FormattedName(%q) = %q, want %q", in, got, want)
		}
	}
}
