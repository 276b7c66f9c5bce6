package agent

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"github.com/plexsphere/tunneld/internal/reconcile"
	"github.com/plexsphere/tunneld/internal/wireguard"
)

func TestAgentConfig_ApplyDefaults(t *testing.T) {
	var cfg AgentConfig
	cfg.ApplyDefaults()

	if cfg.LogLevel != DefaultLogLevel {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, DefaultLogLevel)
	}
	if cfg.WireGuard.InterfaceName != wireguard.DefaultInterfaceName {
		t.Errorf("WireGuard.InterfaceName = %q, want %q", cfg.WireGuard.InterfaceName, wireguard.DefaultInterfaceName)
	}
	if cfg.Reconcile.Interval != 30*time.Second {
		t.Errorf("Reconcile.Interval = %v, want 30s", cfg.Reconcile.Interval)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want /metrics", cfg.Metrics.Path)
	}
}

func TestAgentConfig_Validate_InvalidLogLevel(t *testing.T) {
	var cfg AgentConfig
	cfg.ApplyDefaults()
	cfg.LogLevel = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid log level")
	}
}

func TestParseConfig_ValidYAML(t *testing.T) {
	yaml := `
log_level: debug
tunnel:
  server_endpoint: "203.0.113.10:51820"
  server_public_key: "` + newKey(t) + `"
  client_private_key: "` + newKey(t) + `"
  client_address: 10.6.0.30
  client_port: 40000
  client_address_masks:
    - 10.6.0.0/24
    - 192.168.0.0/16
  network_prefix: 24
wireguard:
  interface_name: wg-test
  mtu: 1380
probe:
  privileged: true
reconcile:
  interval: 10s
  probe_timeout: 2s
  max_retries: 3
metrics:
  listen_addr: "127.0.0.1:9586"
`
	path := writeTemp(t, yaml)
	cfg, err := ParseConfig(path)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if err := cfg.ValidateTunnel(); err != nil {
		t.Fatalf("ValidateTunnel: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Tunnel.ClientPort == nil || *cfg.Tunnel.ClientPort != 40000 {
		t.Errorf("Tunnel.ClientPort = %v, want 40000", cfg.Tunnel.ClientPort)
	}
	if len(cfg.Tunnel.ClientAddressMasks) != 2 {
		t.Errorf("Tunnel.ClientAddressMasks = %v, want 2 entries", cfg.Tunnel.ClientAddressMasks)
	}
	if cfg.WireGuard.InterfaceName != "wg-test" || cfg.WireGuard.MTU != 1380 {
		t.Errorf("WireGuard = %+v, want wg-test mtu 1380", cfg.WireGuard)
	}
	if !cfg.Probe.Privileged {
		t.Error("Probe.Privileged = false, want true")
	}
	if cfg.Reconcile.Interval != 10*time.Second || cfg.Reconcile.ProbeTimeout != 2*time.Second {
		t.Errorf("Reconcile = %+v, want interval 10s probe_timeout 2s", cfg.Reconcile)
	}
	if cfg.Reconcile.MaxRetries != 3 {
		t.Errorf("Reconcile.MaxRetries = %d, want 3", cfg.Reconcile.MaxRetries)
	}
	if cfg.Metrics.ListenAddr != "127.0.0.1:9586" {
		t.Errorf("Metrics.ListenAddr = %q", cfg.Metrics.ListenAddr)
	}
}

func TestParseConfig_EmptyPath(t *testing.T) {
	cfg, err := ParseConfig("")
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, DefaultLogLevel)
	}
	if err := cfg.ValidateTunnel(); err == nil {
		t.Error("ValidateTunnel() = nil, want error for empty tunnel")
	}
}

func TestParseConfig_InvalidReconcile(t *testing.T) {
	path := writeTemp(t, "reconcile:\n  interval: 10s\n  probe_timeout: 10s\n")
	if _, err := ParseConfig(path); err == nil {
		t.Fatal("expected error for probe_timeout >= interval")
	}
}

func TestParseConfig_FileNotFound(t *testing.T) {
	_, err := ParseConfig("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for non-existent file")
	}
}

func TestParseConfig_InvalidYAML(t *testing.T) {
	path := writeTemp(t, "{{invalid yaml")
	_, err := ParseConfig(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestValidateTunnel_PrivateKeyFile(t *testing.T) {
	key := newKey(t)
	keyPath := writeTemp(t, key+"\n")

	cfg := AgentConfig{PrivateKeyFile: keyPath}
	cfg.Tunnel.ServerEndpoint = "203.0.113.10:51820"
	cfg.Tunnel.ServerPublicKey = newKey(t)
	cfg.Tunnel.ClientAddress = "10.6.0.30"
	prefix := 24
	cfg.Tunnel.NetworkPrefix = &prefix

	if err := cfg.ValidateTunnel(); err != nil {
		t.Fatalf("ValidateTunnel: %v", err)
	}
	if cfg.Tunnel.ClientPrivateKey != key {
		t.Errorf("ClientPrivateKey not loaded from file")
	}
}

func TestValidateTunnel_MissingNetworkPrefix(t *testing.T) {
	yaml := `
tunnel:
  server_endpoint: "203.0.113.10:51820"
  server_public_key: "` + newKey(t) + `"
  client_private_key: "` + newKey(t) + `"
  client_address: 10.6.0.30
`
	cfg, err := ParseConfig(writeTemp(t, yaml))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}

	err = cfg.ValidateTunnel()
	var parseErr *reconcile.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("ValidateTunnel = %v, want *reconcile.ParseError", err)
	}
	if parseErr.Field != "network_prefix" {
		t.Errorf("Field = %q, want network_prefix", parseErr.Field)
	}
}

func TestReadPrivateKeyFile_Errors(t *testing.T) {
	if _, err := ReadPrivateKeyFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}

	path := writeTemp(t, " \n")
	_, err := ReadPrivateKeyFile(path)
	if err == nil || !strings.Contains(err.Error(), "empty") {
		t.Errorf("ReadPrivateKeyFile() = %v, want empty file error", err)
	}
}

func newKey(t *testing.T) string {
	t.Helper()
	key, err := wgtypes.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	return key.String()
}

// writeTemp writes content to a temporary YAML file and returns its path.
func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
