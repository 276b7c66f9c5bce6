//go:build !linux

package wireguard

import (
	"fmt"
	"log/slog"
	"runtime"
)

// unsupportedController is returned on platforms without a kernel backend.
type unsupportedController struct {
	name string
}

// NewController returns the platform controller.
func NewController(cfg Config, _ *slog.Logger) Controller {
	cfg.ApplyDefaults()
	return &unsupportedController{name: cfg.InterfaceName}
}

func (c *unsupportedController) unsupported(op string) error {
	return fmt.Errorf("wireguard: %s %s on %s: %w", op, c.name, runtime.GOOS, ErrUnsupported)
}

func (c *unsupportedController) ReadState() (ObservedState, error) {
	return ObservedState{}, c.unsupported("read state")
}

func (c *unsupportedController) Create() error { return c.unsupported("create interface") }

func (c *unsupportedController) Configure(InterfaceConfig) error {
	return c.unsupported("configure")
}

func (c *unsupportedController) ConfigurePeerRouting([]PeerConfig) error {
	return c.unsupported("configure peer routing")
}

func (c *unsupportedController) Remove() error { return c.unsupported("remove interface") }
