package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Scanner.SearchLimit != 50 {
		t.Errorf("SearchLimit = %d, want 50", cfg.Scanner.SearchLimit)
	}
	if cfg.Scanner.MessageLimit != 50 {
		t.Errorf("MessageLimit = %d, want 50", cfg.Scanner.MessageLimit)
	}
	if cfg.Platform.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want 0", cfg.Platform.MaxRetries)
	}
	if cfg.Platform.RetryBackoff != time.Second {
		t.Errorf("RetryBackoff = %v, want 1s", cfg.Platform.RetryBackoff)
	}
	if cfg.Scheduler.ScanCron != "" {
		t.Errorf("ScanCron = %q, want empty", cfg.Scheduler.ScanCron)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
platform:
  base_url: http://bridge:9000
  api_id: 12345
  api_hash: abc
scanner:
  message_limit: 20
scheduler:
  scan_cron: "0 */6 * * *"
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("SCOUT_PLATFORM_SESSION", "env_session")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Platform.BaseURL != "http://bridge:9000" {
		t.Errorf("BaseURL = %q", cfg.Platform.BaseURL)
	}
	if cfg.Platform.Session != "env_session" {
		t.Errorf("Session = %q, want env_session", cfg.Platform.Session)
	}
	if cfg.Scanner.MessageLimit != 20 {
		t.Errorf("MessageLimit = %d, want 20", cfg.Scanner.MessageLimit)
	}
	if cfg.Scheduler.ScanCron != "0 */6 * * *" {
		t.Errorf("ScanCron = %q", cfg.Scheduler.ScanCron)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		Platform: PlatformConfig{BaseURL: "http://x", Session: "s", APIID: 1, APIHash: "h", RequestsPerSecond: 1, Burst: 5},
		Scanner:  ScannerConfig{SearchLimit: 50, MessageLimit: 50},
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing base url", func(c *Config) { c.Platform.BaseURL = "" }, true},
		{"missing session", func(c *Config) { c.Platform.Session = "" }, true},
		{"missing api hash", func(c *Config) { c.Platform.APIHash = "" }, true},
		{"zero limit", func(c *Config) { c.Scanner.MessageLimit = 0 }, true},
		{"zero request rate", func(c *Config) { c.Platform.RequestsPerSecond = 0 }, true},
		{"negative request rate", func(c *Config) { c.Platform.RequestsPerSecond = -1 }, true},
		{"zero burst", func(c *Config) { c.Platform.Burst = 0 }, true},
		{"negative trigger rate", func(c *Config) { c.Server.ScanTriggersPerMinute = -1 }, true},
		{"triggers disabled", func(c *Config) { c.Server.ScanTriggersPerMinute = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
