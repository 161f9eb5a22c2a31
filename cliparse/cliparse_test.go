// cliparse/cliparse_test.go
package cliparse

import (
	"os"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	os.Setenv("DATABASE_URL", "file:test.db")
	os.Setenv("ADMIN_KEY_SALT", "test-salt")
	os.Setenv("ADMIN_TOKEN", "test-token")
	os.Setenv("NULLIFIER_SECRET", "test-nullifier")
	os.Setenv("ATTEST_SECRET", "test-attest")
	os.Setenv("RECEIPT_SIGNING_KEY", "00112233")
}

func TestParseFlags_EnvVars(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("PORT", "9000")
	defer os.Clearenv()

	cfg, err := ParseFlags([]string{})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Port)
	}
	if cfg.DatabaseType != "sqlite" {
		t.Errorf("expected sqlite default, got %s", cfg.DatabaseType)
	}
	if cfg.HasherStrategy != "blake2b" {
		t.Errorf("expected blake2b default, got %s", cfg.HasherStrategy)
	}
}

func TestParseFlags_CLIOverridesEnv(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("PORT", "9000")
	defer os.Clearenv()

	cfg, err := ParseFlags([]string{"-p", "8080", "-d", "file:override.db"})
	if err != nil {
		t.Fatal(err)
	}

	// CLI should override env
	if cfg.Port != 8080 {
		t.Errorf("CLI should override env: expected 8080, got %d", cfg.Port)
	}
	if cfg.DatabaseURL != "file:override.db" {
		t.Errorf("CLI should override env: got %s", cfg.DatabaseURL)
	}
}

func TestParseFlags_MissingSecrets(t *testing.T) {
	setRequiredEnv(t)
	os.Unsetenv("ATTEST_SECRET")
	defer os.Clearenv()

	if _, err := ParseFlags([]string{}); err == nil {
		t.Error("expected error when ATTEST_SECRET is missing")
	}
}

func TestParseFlags_Defaults(t *testing.T) {
	setRequiredEnv(t)
	defer os.Clearenv()

	cfg, err := ParseFlags([]string{})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 3419 {
		t.Errorf("expected default port 3419, got %d", cfg.Port)
	}
	if cfg.AttestTTLSeconds != 180 {
		t.Errorf("expected attestation TTL 180, got %d", cfg.AttestTTLSeconds)
	}
	if cfg.DefaultK != 30 {
		t.Errorf("expected default k 30, got %d", cfg.DefaultK)
	}
	// Noise key falls back to the nullifier secret when unset.
	if cfg.AnalyticsNoiseKey != cfg.NullifierSecret {
		t.Error("expected noise key to fall back to the nullifier secret")
	}
}
