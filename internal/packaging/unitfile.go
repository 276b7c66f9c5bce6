package packaging

import (
	"fmt"
	"path/filepath"
)

// GenerateUnitFile produces the systemd unit for the supervisor. The tunnel
// interface is torn down whenever the service stops.
// It calls cfg.ApplyDefaults() to fill in zero-valued fields before generating the output.
func GenerateUnitFile(cfg InstallConfig) string {
	cfg.ApplyDefaults()

	configPath := filepath.Join(cfg.ConfigDir, ConfigFileName)

	return fmt.Sprintf(`[Unit]
Description=tunneld WireGuard tunnel supervisor
After=network-online.target
Wants=network-online.target
StartLimitBurst=5
StartLimitIntervalSec=300

[Service]
Type=simple
ExecStart=%[1]s supervise --config %[2]s
ExecStopPost=%[1]s teardown --config %[2]s
Restart=on-failure
RestartSec=10s
AmbientCapabilities=CAP_NET_ADMIN CAP_NET_RAW
CapabilityBoundingSet=CAP_NET_ADMIN CAP_NET_RAW
ProtectSystem=full
ProtectHome=true
PrivateTmp=true

[Install]
WantedBy=multi-user.target
`, cfg.BinaryPath, configPath)
}
