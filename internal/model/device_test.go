package model

import (
	"testing"
	"time"
)

func TestDeviceCredential_Usable(t *testing.T) {
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name string
		cred DeviceCredential
		want bool
	}{
		{"active without expiry", DeviceCredential{IsActive: true}, true},
		{"active not yet expired", DeviceCredential{IsActive: true, ExpiresAt: &future}, true},
		{"expired", DeviceCredential{IsActive: true, ExpiresAt: &past}, false},
		{"expires exactly now", DeviceCredential{IsActive: true, ExpiresAt: &now}, false},
		{"revoked", DeviceCredential{IsActive: false}, false},
	}
	for _, tt := range tests {
		if got := tt.cred.Usable(now); got != tt.want {
			t.Errorf("%s: Usable() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
