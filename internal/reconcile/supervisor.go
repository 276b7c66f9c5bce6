// Package reconcile keeps the tunnel interface converged to a desired state.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"time"

	"github.com/plexsphere/tunneld/internal/metrics"
	"github.com/plexsphere/tunneld/internal/probe"
	"github.com/plexsphere/tunneld/internal/wireguard"
)

// Supervisor reconciles the tunnel interface owned by its controller.
//
// The supervisor assumes it is the sole manager of the interface: the state
// read at the start of a cycle and the mutations that follow are not atomic,
// and a concurrent writer can change the interface in between. Reconcile,
// Run and Teardown must not be called concurrently.
type Supervisor struct {
	ctrl    wireguard.Controller
	prober  probe.Prober
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewSupervisor creates a new Supervisor. Config defaults are applied automatically.
func NewSupervisor(ctrl wireguard.Controller, prober probe.Prober, cfg Config, logger *slog.Logger) *Supervisor {
	cfg.ApplyDefaults()
	return &Supervisor{
		ctrl:   ctrl,
		prober: prober,
		cfg:    cfg,
		logger: logger,
	}
}

// SetMetrics attaches Prometheus metrics. It must be called before Run.
func (s *Supervisor) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Reconcile runs one cycle: create the interface if absent, leave it alone
// if it is reachable and points at the desired endpoint, otherwise remove
// and recreate it. Only *ParseError, *ControlPlaneError and context errors
// are returned; unreachability and drift are resolved here.
func (s *Supervisor) Reconcile(ctx context.Context, desired DesiredState) error {
	start := time.Now()

	outcome, err := s.reconcile(ctx, desired)
	if err != nil {
		s.metrics.ObserveCycle(metrics.OutcomeError)
		return err
	}
	s.metrics.ObserveCycle(outcome)

	level := slog.LevelInfo
	if outcome == metrics.OutcomeHealthy {
		level = slog.LevelDebug
	}
	s.logger.Log(ctx, level, "reconciliation cycle completed",
		"component", "reconcile",
		"outcome", outcome,
		"duration", time.Since(start),
	)
	return nil
}

func (s *Supervisor) reconcile(ctx context.Context, desired DesiredState) (string, error) {
	plan, err := desired.plan()
	if err != nil {
		return "", err
	}

	state, err := s.ctrl.ReadState()
	if errors.Is(err, wireguard.ErrNotFound) {
		s.logger.Info("tunnel interface absent, creating",
			"component", "reconcile",
		)
		if err := s.build(plan); err != nil {
			return "", err
		}
		return metrics.OutcomeCreated, nil
	}
	if err != nil {
		return "", &ControlPlaneError{Op: "read state", Err: err}
	}

	reason, err := s.assess(ctx, plan, state)
	if err != nil {
		return "", err
	}
	if reason == "" {
		return metrics.OutcomeHealthy, nil
	}

	s.logger.Warn("recreating tunnel interface",
		"component", "reconcile",
		"reason", reason,
	)
	s.metrics.ObserveRecreation(reason)

	if err := s.ctrl.Remove(); err != nil {
		return "", &ControlPlaneError{Op: "remove interface", Err: err}
	}
	if err := s.build(plan); err != nil {
		return "", err
	}
	return metrics.OutcomeRecreated, nil
}

// assess probes an existing interface and compares its peer endpoint.
// It returns the recreation reason, or "" when the interface is healthy.
func (s *Supervisor) assess(ctx context.Context, plan *tunnelPlan, state wireguard.ObservedState) (string, error) {
	start := time.Now()
	probeErr := s.prober.Probe(ctx, plan.probeTarget, s.cfg.ProbeTimeout)
	s.metrics.ObserveProbe(probeErr == nil, time.Since(start))

	// A probe cut short by shutdown says nothing about the tunnel.
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch {
	case probeErr == nil:
	case errors.Is(probeErr, probe.ErrUnreachable):
		s.logger.Warn("tunnel peer unreachable",
			"component", "reconcile",
			"target", plan.probeTarget.String(),
			"error", probeErr,
		)
		return metrics.ReasonUnreachable, nil
	default:
		// Reachability is unknown, so only the configuration is checked.
		s.logger.Warn("reachability check unavailable",
			"component", "reconcile",
			"target", plan.probeTarget.String(),
			"error", probeErr,
		)
	}

	if len(state.Peers) == 0 {
		return metrics.ReasonNoPeer, nil
	}
	if len(state.Peers) > 1 {
		s.logger.Warn("unexpected peer count",
			"component", "reconcile",
			"peers", len(state.Peers),
		)
		return metrics.ReasonDrift, nil
	}

	var observed netip.AddrPort
	for _, peer := range state.Peers {
		observed = peer.Endpoint
	}
	if observed != plan.endpoint {
		s.logger.Warn("peer endpoint drifted",
			"component", "reconcile",
			"observed", observed.String(),
			"desired", plan.endpoint.String(),
		)
		return metrics.ReasonDrift, nil
	}
	return "", nil
}

// build creates and configures the interface with the single planned peer.
func (s *Supervisor) build(plan *tunnelPlan) error {
	peer := wireguard.PeerConfig{
		PublicKey:           plan.serverKey,
		Endpoint:            plan.endpoint,
		AllowedIPs:          plan.allowedIPs,
		PersistentKeepalive: wireguard.PersistentKeepalive,
	}
	cfg := wireguard.InterfaceConfig{
		PrivateKey: plan.privateKey,
		Address:    netip.PrefixFrom(plan.address, 32),
		ListenPort: plan.port,
		Peers:      []wireguard.PeerConfig{peer},
	}

	if err := s.ctrl.Create(); err != nil {
		return &ControlPlaneError{Op: "create interface", Err: err}
	}
	if err := s.ctrl.Configure(cfg); err != nil {
		return &ControlPlaneError{Op: "configure interface", Err: err}
	}
	if err := s.ctrl.ConfigurePeerRouting(cfg.Peers); err != nil {
		return &ControlPlaneError{Op: "configure peer routing", Err: err}
	}

	s.logger.Info("tunnel interface configured",
		"component", "reconcile",
		"endpoint", plan.endpoint.String(),
		"address", plan.address.String(),
		"listen_port", plan.port,
		"allowed_ips", len(plan.allowedIPs),
	)
	return nil
}

// Teardown removes the interface if it exists. An absent interface is not
// an error.
func (s *Supervisor) Teardown() error {
	_, err := s.ctrl.ReadState()
	if errors.Is(err, wireguard.ErrNotFound) {
		s.logger.Debug("tunnel interface absent, nothing to tear down",
			"component", "reconcile",
		)
		return nil
	}
	if err != nil {
		return &ControlPlaneError{Op: "read state", Err: err}
	}

	if err := s.ctrl.Remove(); err != nil {
		return &ControlPlaneError{Op: "remove interface", Err: err}
	}
	s.logger.Info("tunnel interface torn down",
		"component", "reconcile",
	)
	return nil
}
