package store

import (
	"testing"
	"time"
)

func TestIntFromEnv(t *testing.T) {
	t.Setenv(maxOpenConnsEnvKey, "")
	if got := intFromEnv(maxOpenConnsEnvKey, 3); got != 3 {
		t.Fatalf("expected default 3, got %d", got)
	}

	t.Setenv(maxOpenConnsEnvKey, "4")
	if got := intFromEnv(maxOpenConnsEnvKey, 3); got != 4 {
		t.Fatalf("expected parsed 4, got %d", got)
	}

	for _, raw := range []string{"bad", "0", "-2"} {
		t.Setenv(maxOpenConnsEnvKey, raw)
		if got := intFromEnv(maxOpenConnsEnvKey, 3); got != 3 {
			t.Fatalf("expected default for %q, got %d", raw, got)
		}
	}
}

func TestDurationFromEnv(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Duration
	}{
		{raw: "", want: 2 * time.Minute},
		{raw: "45s", want: 45 * time.Second},
		{raw: "30", want: 30 * time.Second},
		{raw: "invalid", want: 2 * time.Minute},
		{raw: "-5s", want: 2 * time.Minute},
	}
	for _, tc := range tests {
		t.Setenv(connMaxLifetimeEnvKey, tc.raw)
		if got := durationFromEnv(connMaxLifetimeEnvKey, 2*time.Minute); got != tc.want {
			t.Fatalf("%q: expected %v, got %v", tc.raw, tc.want, got)
		}
	}
}

func TestSqliteDSN(t *testing.T) {
	if _, err := sqliteDSN(""); err == nil {
		t.Fatal("expected error for empty path")
	}
	dsn, err := sqliteDSN("/tmp/my posts.db")
	if err != nil {
		t.Fatalf("dsn: %v", err)
	}
	if dsn != "file:///tmp/my%20posts.db" {
		t.Fatalf("unexpected dsn %q", dsn)
	}
}
