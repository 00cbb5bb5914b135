package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
	if err != nil {
		t.Fatalf("creating temp config: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	f.Close()
	return f.Name()
}

func TestLoad_Valid(t *testing.T) {
	path := writeConfig(t, `
google:
  client_id: "client.apps.googleusercontent.com"
  client_secret: "secret"
  calendar_id: "team@example.com"
db_path: "/tmp/meetsync.db"
window_days: 14
timezone: "Europe/Berlin"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Google.ClientID != "client.apps.googleusercontent.com" {
		t.Errorf("ClientID = %q", cfg.Google.ClientID)
	}
	if cfg.Google.CalendarID != "team@example.com" {
		t.Errorf("CalendarID = %q, want %q", cfg.Google.CalendarID, "team@example.com")
	}
	if cfg.DBPath != "/tmp/meetsync.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.WindowDays != 14 {
		t.Errorf("WindowDays = %d, want 14", cfg.WindowDays)
	}
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("Location: %v", err)
	}
	if loc.String() != "Europe/Berlin" {
		t.Errorf("Location = %q, want Europe/Berlin", loc)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
google:
  client_id: "client"
  client_secret: "secret"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Google.CalendarID != "primary" {
		t.Errorf("CalendarID = %q, want default primary", cfg.Google.CalendarID)
	}
	if cfg.WindowDays != 30 {
		t.Errorf("WindowDays = %d, want default 30", cfg.WindowDays)
	}
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("Location: %v", err)
	}
	if loc == nil {
		t.Error("expected system zone fallback")
	}
}

func TestLoad_MissingClientID(t *testing.T) {
	path := writeConfig(t, `
google:
  client_secret: "secret"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing google.client_id, got nil")
	}
}

func TestLoad_MissingClientSecret(t *testing.T) {
	path := writeConfig(t, `
google:
  client_id: "client"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing google.client_secret, got nil")
	}
}

func TestLoad_WindowTooLarge(t *testing.T) {
	path := writeConfig(t, `
google:
  client_id: "client"
  client_secret: "secret"
window_days: 1000
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for window_days > 365, got nil")
	}
}

func TestLoad_NegativeWindow(t *testing.T) {
	path := writeConfig(t, `
google:
  client_id: "client"
  client_secret: "secret"
window_days: -5
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for negative window_days, got nil")
	}
}

func TestLoad_InvalidTimezone(t *testing.T) {
	path := writeConfig(t, `
google:
  client_id: "client"
  client_secret: "secret"
timezone: "Mars/Olympus_Mons"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid timezone, got nil")
	}
}

func TestLoad_UnknownKey(t *testing.T) {
	path := writeConfig(t, `
google:
  client_id: "client"
  client_secret: "secret"
unknown_field: oops
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown config key, got nil")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestDefaultPath(t *testing.T) {
	path, err := DefaultPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path == "" {
		t.Error("DefaultPath returned empty string")
	}
}

func TestLoad_TelemetryValid(t *testing.T) {
	path := writeConfig(t, `
google:
  client_id: "client"
  client_secret: "secret"
telemetry:
  otlp_endpoint: "localhost:4317"
  insecure: true
  service_name: "my-meetsync"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Telemetry == nil {
		t.Fatal("expected Telemetry to be non-nil")
	}
	if cfg.Telemetry.OTLPEndpoint != "localhost:4317" {
		t.Errorf("OTLPEndpoint = %q, want %q", cfg.Telemetry.OTLPEndpoint, "localhost:4317")
	}
	if !cfg.Telemetry.Insecure {
		t.Error("Insecure = false, want true")
	}
	if cfg.Telemetry.ServiceName != "my-meetsync" {
		t.Errorf("ServiceName = %q, want %q", cfg.Telemetry.ServiceName, "my-meetsync")
	}
}

func TestLoad_TelemetryOmitted(t *testing.T) {
	path := writeConfig(t, `
google:
  client_id: "client"
  client_secret: "secret"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Telemetry != nil {
		t.Error("expected Telemetry to be nil when block is omitted")
	}
}

func TestLoad_TelemetryMissingEndpoint(t *testing.T) {
	path := writeConfig(t, `
google:
  client_id: "client"
  client_secret: "secret"
telemetry:
  insecure: true
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for telemetry missing otlp_endpoint, got nil")
	}
}

func TestLoad_TelemetryHeaders(t *testing.T) {
	path := writeConfig(t, `
google:
  client_id: "client"
  client_secret: "secret"
telemetry:
  otlp_endpoint: "otelcol.example.com:4317"
  headers:
    Authorization: "Bearer secret"
    x-dataset: "test"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Telemetry.Headers) != 2 {
		t.Fatalf("Headers len = %d, want 2", len(cfg.Telemetry.Headers))
	}
	if cfg.Telemetry.Headers["Authorization"] != "Bearer secret" {
		t.Errorf("Authorization header = %q, want %q", cfg.Telemetry.Headers["Authorization"], "Bearer secret")
	}
	if cfg.Telemetry.Headers["x-dataset"] != "test" {
		t.Errorf("x-dataset header = %q, want %q", cfg.Telemetry.Headers["x-dataset"], "test")
	}
}
