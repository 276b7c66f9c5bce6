package packaging

import "fmt"

// GenerateDefaultConfig produces a starter config.yaml that reads the
// private key from keyPath. The tunnel section is left for the operator.
func GenerateDefaultConfig(keyPath string) string {
	return fmt.Sprintf(`# tunneld configuration

log_level: info
private_key_file: %s

tunnel:
  # server_endpoint: "203.0.113.10:51820"
  # server_public_key: "<base64 server public key>"
  # client_address: 10.6.0.30
  # network_prefix: 24
  # client_port: 12345
  # client_address_masks:
  #   - 10.6.0.0/24

reconcile:
  interval: 30s
  probe_timeout: 3s

metrics:
  # listen_addr: "127.0.0.1:9586"
`, keyPath)
}
