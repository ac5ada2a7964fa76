package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.test.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile_defaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 8080 || cfg.Mode != "release" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.Stage.RetryBase != 200*time.Millisecond || cfg.Stage.RetryStep != 100*time.Millisecond || cfg.Stage.RetryAttempts != 5 {
		t.Errorf("unexpected stage defaults %+v", cfg.Stage)
	}
	if cfg.PingPeriod != 54*time.Second {
		t.Errorf("unexpected ping period %s", cfg.PingPeriod)
	}
}

func TestLoadFile_yamlAndEnv(t *testing.T) {
	path := writeConfig(t, `
port: 9090
stage:
  retry_base: 50ms
  retry_attempts: 3
signal:
  rate_limit: 2
`)
	t.Setenv("SPOTLIGHT_STAGE_RETRY_STEP", "25ms")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("port = %d", cfg.Port)
	}
	if cfg.Stage.RetryBase != 50*time.Millisecond || cfg.Stage.RetryAttempts != 3 {
		t.Errorf("stage = %+v", cfg.Stage)
	}
	if cfg.Stage.RetryStep != 25*time.Millisecond {
		t.Errorf("env override ignored, step = %s", cfg.Stage.RetryStep)
	}
	if cfg.Signal.RateLimit != 2 || cfg.Signal.RateInterval != time.Second {
		t.Errorf("signal = %+v", cfg.Signal)
	}
}

func TestLoadFile_rejectsInvalid(t *testing.T) {
	path := writeConfig(t, "stage:\n  retry_attempts: 0\n")
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected validation error")
	}
}
