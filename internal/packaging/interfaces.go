package packaging

// ServiceManager is the part of systemctl the installer drives for the
// tunneld unit. Stop and Disable on a unit that is already stopped or
// disabled return nil.
type ServiceManager interface {
	IsAvailable() bool
	DaemonReload() error
	Enable(service string) error
	Disable(service string) error
	Stop(service string) error

	// IsActive gates Stop during uninstall.
	IsActive(service string) bool
}

// PrivilegeChecker reports whether install and uninstall may write to
// system paths.
type PrivilegeChecker interface {
	IsRoot() bool
}
