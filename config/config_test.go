package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `cloud:
  username: "user@example.com"
  password: "secret"
  timeout_seconds: 10
mqtt:
  enabled: true
  broker: "tcp://localhost:1883"
  client_id: "cli"
  topic_prefix: "hvac"
metrics:
  prometheus_enabled: true
  prometheus_port: ":9091"
planning:
  entities:
    - "sensor.aldes_1234_planning_heating_prog_a"
  submit_timeout_seconds: 5
  refresh_interval_seconds: 60
logging:
  level: "debug"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"cloud.username", cfg.Cloud.Username, "user@example.com"},
		{"cloud.password", cfg.Cloud.Password, "secret"},
		{"cloud.timeout_seconds", cfg.Cloud.TimeoutSeconds, 10},
		{"cloud.base_url default", cfg.Cloud.BaseURL, "https://aldesiotsuite-aldeswebapi.azurewebsites.net"},
		{"mqtt.enabled", cfg.MQTT.Enabled, true},
		{"mqtt.broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"mqtt.client_id", cfg.MQTT.ClientID, "cli"},
		{"mqtt.topic_prefix", cfg.MQTT.TopicPrefix, "hvac"},
		{"metrics.prometheus_enabled", cfg.Metrics.PrometheusEnabled, true},
		{"metrics.prometheus_port", cfg.Metrics.PrometheusPort, ":9091"},
		{"planning.entities", len(cfg.Planning.Entities) == 1 && cfg.Planning.Entities[0] == "sensor.aldes_1234_planning_heating_prog_a", true},
		{"planning.submit_timeout_seconds", cfg.Planning.SubmitTimeoutSeconds, 5},
		{"planning.refresh_interval_seconds", cfg.Planning.RefreshIntervalSeconds, 60},
		{"planning.http_addr default", cfg.Planning.HTTPAddr, ":8086"},
		{"logging.level", cfg.Logging.Level, "debug"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `cloud:
  username: "user@example.com"
  password: "secret"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TONECTL_LOGGING__LEVEL", "warn")
	t.Setenv("TONECTL_CLOUD__PASSWORD", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("logging.level = %q, want env override", cfg.Logging.Level)
	}
	if cfg.Cloud.Password != "from-env" {
		t.Errorf("cloud.password = %q, want env override", cfg.Cloud.Password)
	}
}

func TestLoadRejectsMissingCredentials(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("load accepted a config without cloud credentials")
	}
}

func TestLoadRejectsUnknownFormat(t *testing.T) {
	if _, err := Load("config.toml"); err == nil {
		t.Fatalf("load accepted an unsupported extension")
	}
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `cloud:
  username: "user@example.com"
  password: "secret"
logging:
  level: "verbose"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("load accepted an unknown log level")
	}
}
