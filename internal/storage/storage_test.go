package storage

import (
	"errors"
	"testing"
	"time"
)

func TestPhotoKey(t *testing.T) {
	now := time.Date(2025, 3, 31, 23, 59, 0, 0, time.UTC)

	tests := []struct {
		ext  string
		want string
	}{
		{"jpg", "photos/dev-1/2025/03/evt-1.jpg"},
		{".JPG", "photos/dev-1/2025/03/evt-1.jpg"},
		{"", "photos/dev-1/2025/03/evt-1.jpg"},
		{"png", "photos/dev-1/2025/03/evt-1.png"},
	}
	for _, tt := range tests {
		if got := PhotoKey(now, "dev-1", "evt-1", tt.ext); got != tt.want {
			t.Errorf("PhotoKey(ext=%q) = %q, want %q", tt.ext, got, tt.want)
		}
	}

	// Same calendar month yields the same key; the next month does not.
	later := now.Add(-10 * 24 * time.Hour)
	if PhotoKey(later, "dev-1", "evt-1", "jpg") != PhotoKey(now, "dev-1", "evt-1", "jpg") {
		t.Error("PhotoKey() differs within the same month")
	}
	if PhotoKey(now.Add(time.Hour), "dev-1", "evt-1", "jpg") == PhotoKey(now, "dev-1", "evt-1", "jpg") {
		t.Error("PhotoKey() equal across a month boundary")
	}

	// Keys are derived in UTC regardless of the clock's zone.
	zone := time.FixedZone("UTC+2", 2*60*60)
	if got := PhotoKey(time.Date(2025, 4, 1, 1, 0, 0, 0, zone), "d", "e", "jpg"); got != "photos/d/2025/03/e.jpg" {
		t.Errorf("PhotoKey() in foreign zone = %q", got)
	}
}

func TestValidateKey(t *testing.T) {
	valid := []string{
		"photos/dev/2025/03/evt.jpg",
		"a",
	}
	for _, key := range valid {
		if err := ValidateKey(key); err != nil {
			t.Errorf("ValidateKey(%q) = %v, want nil", key, err)
		}
	}

	invalid := []string{
		"",
		"/etc/passwd",
		"../secret",
		"photos/../../secret",
		"photos//double",
		"photos/./x",
		`photos\x`,
		"photos/x.jpg.meta",
		"photos/x/",
		"..",
	}
	for _, key := range invalid {
		if err := ValidateKey(key); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("ValidateKey(%q) = %v, want ErrInvalidKey", key, err)
		}
	}
}

func TestDevicePrefix(t *testing.T) {
	if got := DevicePrefix("abc"); got != "photos/abc/" {
		t.Errorf("DevicePrefix() = %q", got)
	}
}
