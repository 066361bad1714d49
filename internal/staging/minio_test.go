package staging

import (
	"context"
	"testing"
)

func TestNormaliseEndpoint(t *testing.T) {
	tests := []struct {
		in           string
		wantEndpoint string
		wantSecure   bool
		wantErr      bool
	}{
		{"minio:9000", "minio:9000", false, false},
		{"http://minio:9000", "minio:9000", false, false},
		{"https://minio:9000", "minio:9000", true, false},
		{"http://minio:9000/", "minio:9000", false, false},
		{"  minio:9000  ", "minio:9000", false, false},
		{"http://minio:9000/foo", "", false, true},
		{"http://", "", false, true},
		{"", "", false, true},
	}

	for _, tt := range tests {
		ep, secure, err := normaliseEndpoint(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("expected error for input %q", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", tt.in, err)
		}
		if ep != tt.wantEndpoint || secure != tt.wantSecure {
			t.Fatalf("normaliseEndpoint(%q) = (%q,%v), want (%q,%v)", tt.in, ep, secure, tt.wantEndpoint, tt.wantSecure)
		}
	}
}

func TestNewMinioClient_Incomplete(t *testing.T) {
	_, err := NewMinioClient(context.Background(), MinioConfig{Endpoint: "minio:9000"})
	if err == nil {
		t.Fatal("expected error for incomplete configuration")
	}
}

func TestObjectKey(t *testing.T) {
	key, err := objectKey(AreaFormatted, "1_a_list_formatted.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "formatted/1_a_list_formatted.txt" {
		t.Errorf("objectKey = %q", key)
	}

	if _, err := objectKey("other", "x"); err == nil {
		t.Error("expected error for unknown area")
	}
	if _, err := objectKey(AreaUploads, "../x"); err == nil {
		t.Error("expected error for name with separator")
	}
}
