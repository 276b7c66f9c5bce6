package packaging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"github.com/plexsphere/tunneld/internal/fsutil"
	"github.com/plexsphere/tunneld/internal/wireguard"
)

// InstallResult describes what Install left on disk.
type InstallResult struct {
	// PublicKey is the client public key to register on the server.
	PublicKey string

	// KeyGenerated is true when Install created a new private key.
	KeyGenerated bool
}

// Installer handles installing and uninstalling tunneld as a systemd service.
type Installer struct {
	cfg     InstallConfig
	systemd ServiceManager
	root    PrivilegeChecker
	logger  *slog.Logger
}

// NewInstaller creates a new Installer with defaults applied.
func NewInstaller(cfg InstallConfig, systemd ServiceManager, root PrivilegeChecker, logger *slog.Logger) *Installer {
	cfg.ApplyDefaults()
	return &Installer{
		cfg:     cfg,
		systemd: systemd,
		root:    root,
		logger:  logger.With("component", "packaging"),
	}
}

// Install copies the binary, writes a starter config and private key when
// absent, writes the unit file and reloads systemd. Existing config and
// keys are preserved.
func (ins *Installer) Install() (InstallResult, error) {
	if !ins.root.IsRoot() {
		return InstallResult{}, errors.New("packaging: install requires root privileges")
	}
	if !ins.systemd.IsAvailable() {
		return InstallResult{}, errors.New("packaging: systemd is not available")
	}

	if err := os.MkdirAll(ins.cfg.ConfigDir, 0o700); err != nil {
		return InstallResult{}, fmt.Errorf("packaging: create directory %s: %w", ins.cfg.ConfigDir, err)
	}

	if err := ins.copyBinary(); err != nil {
		return InstallResult{}, err
	}

	keyPath := filepath.Join(ins.cfg.ConfigDir, PrivateKeyFileName)
	result, err := ins.ensurePrivateKey(keyPath)
	if err != nil {
		return InstallResult{}, err
	}

	configPath := filepath.Join(ins.cfg.ConfigDir, ConfigFileName)
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		if err := fsutil.WriteFileAtomic(configPath, []byte(GenerateDefaultConfig(keyPath)), 0o640); err != nil {
			return InstallResult{}, fmt.Errorf("packaging: write config: %w", err)
		}
		ins.logger.Info("default config written", "path", configPath)
	} else if err == nil {
		ins.logger.Info("existing config preserved", "path", configPath)
	} else {
		return InstallResult{}, fmt.Errorf("packaging: stat config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(ins.cfg.UnitFilePath), 0o755); err != nil {
		return InstallResult{}, fmt.Errorf("packaging: create unit file directory: %w", err)
	}
	if err := fsutil.WriteFileAtomic(ins.cfg.UnitFilePath, []byte(GenerateUnitFile(ins.cfg)), 0o644); err != nil {
		return InstallResult{}, fmt.Errorf("packaging: write unit file: %w", err)
	}
	ins.logger.Info("unit file written", "path", ins.cfg.UnitFilePath)

	if err := ins.systemd.DaemonReload(); err != nil {
		return InstallResult{}, fmt.Errorf("packaging: daemon-reload: %w", err)
	}

	if ins.cfg.Enable {
		if err := ins.systemd.Enable(ins.cfg.ServiceName); err != nil {
			return InstallResult{}, fmt.Errorf("packaging: enable %s: %w", ins.cfg.ServiceName, err)
		}
		ins.logger.Info("service enabled", "service", ins.cfg.ServiceName)
	}

	return result, nil
}

// Uninstall stops and removes the service and binary. Stopping the service
// tears the tunnel down. If purge is true the config directory, including
// the private key, is removed as well.
func (ins *Installer) Uninstall(purge bool) error {
	if !ins.root.IsRoot() {
		return errors.New("packaging: uninstall requires root privileges")
	}

	if _, err := os.Stat(ins.cfg.UnitFilePath); errors.Is(err, os.ErrNotExist) {
		ins.logger.Info("tunneld is not installed, nothing to do")
		return nil
	}

	if ins.systemd.IsActive(ins.cfg.ServiceName) {
		if err := ins.systemd.Stop(ins.cfg.ServiceName); err != nil {
			return fmt.Errorf("packaging: stop %s: %w", ins.cfg.ServiceName, err)
		}
	}
	// The unit may never have been enabled.
	if err := ins.systemd.Disable(ins.cfg.ServiceName); err != nil {
		ins.logger.Warn("disable service failed", "error", err)
	}

	if err := os.Remove(ins.cfg.UnitFilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("packaging: remove unit file: %w", err)
	}
	ins.logger.Info("unit file removed", "path", ins.cfg.UnitFilePath)

	if err := ins.systemd.DaemonReload(); err != nil {
		return fmt.Errorf("packaging: daemon-reload: %w", err)
	}

	if err := os.Remove(ins.cfg.BinaryPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("packaging: remove binary: %w", err)
	}
	ins.logger.Info("binary removed", "path", ins.cfg.BinaryPath)

	if purge {
		if err := os.RemoveAll(ins.cfg.ConfigDir); err != nil {
			return fmt.Errorf("packaging: remove directory %s: %w", ins.cfg.ConfigDir, err)
		}
		ins.logger.Info("directory removed", "path", ins.cfg.ConfigDir)
	}
	return nil
}

// ensurePrivateKey loads the key at path or generates one with mode 0600.
func (ins *Installer) ensurePrivateKey(path string) (InstallResult, error) {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		priv, err := wgtypes.ParseKey(strings.TrimSpace(string(data)))
		if err != nil {
			return InstallResult{}, fmt.Errorf("packaging: existing private key %s: %w", path, err)
		}
		pub, err := wireguard.PublicKey(priv)
		if err != nil {
			return InstallResult{}, fmt.Errorf("packaging: existing private key %s: %w", path, err)
		}
		ins.logger.Info("existing private key preserved", "path", path)
		return InstallResult{PublicKey: pub.String()}, nil
	case !errors.Is(err, os.ErrNotExist):
		return InstallResult{}, fmt.Errorf("packaging: read private key: %w", err)
	}

	priv, err := wireguard.GeneratePrivateKey()
	if err != nil {
		return InstallResult{}, fmt.Errorf("packaging: generate private key: %w", err)
	}
	if err := fsutil.WriteFileAtomic(path, []byte(priv.String()+"\n"), 0o600); err != nil {
		return InstallResult{}, fmt.Errorf("packaging: write private key: %w", err)
	}
	pub, err := wireguard.PublicKey(priv)
	if err != nil {
		return InstallResult{}, fmt.Errorf("packaging: generate private key: %w", err)
	}
	ins.logger.Info("private key generated", "path", path)
	return InstallResult{PublicKey: pub.String(), KeyGenerated: true}, nil
}

func (ins *Installer) copyBinary() error {
	srcPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("packaging: resolve executable path: %w", err)
	}
	srcPath, err = filepath.EvalSymlinks(srcPath)
	if err != nil {
		return fmt.Errorf("packaging: resolve symlinks: %w", err)
	}

	dstPath := ins.cfg.BinaryPath
	if srcPath == dstPath {
		ins.logger.Info("binary already at install path, skipping copy", "path", dstPath)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("packaging: create binary directory: %w", err)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("packaging: open source binary: %w", err)
	}
	defer src.Close()

	// Write beside the target and rename so a running binary is never truncated.
	tmpPath := dstPath + ".new"
	dst, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("packaging: create destination binary: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("packaging: copy binary: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("packaging: copy binary: %w", err)
	}
	if err := os.Rename(tmpPath, dstPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("packaging: install binary: %w", err)
	}

	ins.logger.Info("binary installed", "src", srcPath, "dst", dstPath)
	return nil
}
