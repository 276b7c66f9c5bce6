package packaging

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// systemctl shells out to the systemctl binary.
type systemctl struct{}

// NewServiceManager returns a ServiceManager backed by systemctl.
func NewServiceManager() ServiceManager {
	return systemctl{}
}

func (systemctl) IsAvailable() bool {
	_, err := exec.LookPath("systemctl")
	return err == nil
}

func (s systemctl) DaemonReload() error          { return s.run("daemon-reload") }
func (s systemctl) Enable(service string) error  { return s.run("enable", service) }
func (s systemctl) Disable(service string) error { return s.run("disable", service) }
func (s systemctl) Stop(service string) error    { return s.run("stop", service) }

func (systemctl) IsActive(service string) bool {
	return exec.Command("systemctl", "is-active", "--quiet", service).Run() == nil
}

func (systemctl) run(args ...string) error {
	out, err := exec.Command("systemctl", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("packaging: systemctl %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(string(out)), err)
	}
	return nil
}

// uidChecker reports root from the effective UID.
type uidChecker struct{}

// NewPrivilegeChecker returns a PrivilegeChecker that checks the effective UID.
func NewPrivilegeChecker() PrivilegeChecker {
	return uidChecker{}
}

func (uidChecker) IsRoot() bool {
	return os.Geteuid() == 0
}
