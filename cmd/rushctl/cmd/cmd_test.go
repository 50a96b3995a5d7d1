package cmd

import (
	"strings"
	"testing"
)

func TestCommandTree(t *testing.T) {
	tests := []struct {
		name string
		path []string
	}{
		{"migrate up", []string{"up"}},
		{"migrate down", []string{"down"}},
		{"migrate status", []string{"status"}},
	}
	migrate := MigrateCmd()
	for _, tt := range tests {
		if c, _, err := migrate.Find(tt.path); err != nil || c == migrate {
			t.Errorf("%s: not registered (%v)", tt.name, err)
		}
	}

	if c, _, err := StatsCmd().Find([]string{"refresh"}); err != nil || c.Name() != "refresh" {
		t.Errorf("stats refresh not registered (%v)", err)
	}
}

func TestUserCreateRequiresFlags(t *testing.T) {
	user := UserCmd()
	user.SetArgs([]string{"create", "--email", "a@example.com"})
	user.SilenceUsage = true
	user.SilenceErrors = true

	err := user.Execute()
	if err == nil || !strings.Contains(err.Error(), "password") {
		t.Errorf("Execute() error = %v, want missing password flag", err)
	}
}
