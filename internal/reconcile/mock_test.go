package reconcile

import (
	"context"
	"io"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/plexsphere/tunneld/internal/wireguard"
)

// mockCall records a single method invocation on mockController.
type mockCall struct {
	Method string
	Args   []interface{}
}

// mockController is a test double for wireguard.Controller.
// It records all calls and supports configurable returns per method.
// Create/Remove flip the simulated existence of the interface.
type mockController struct {
	mu sync.Mutex

	calls []mockCall

	// Simulated interface state returned by ReadState while it exists.
	exists bool
	peers  map[string]wireguard.PeerObservation

	readStateErr  error
	createErr     error
	configureErr  error
	routingErr    error
	removeErr     error
	createErrOnce bool
}

func (m *mockController) record(method string, args ...interface{}) {
	m.calls = append(m.calls, mockCall{Method: method, Args: args})
}

func (m *mockController) ReadState() (wireguard.ObservedState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ReadState")
	if m.readStateErr != nil {
		return wireguard.ObservedState{}, m.readStateErr
	}
	if !m.exists {
		return wireguard.ObservedState{}, wireguard.ErrNotFound
	}
	peers := make(map[string]wireguard.PeerObservation, len(m.peers))
	for k, v := range m.peers {
		peers[k] = v
	}
	return wireguard.ObservedState{Exists: true, Peers: peers}, nil
}

func (m *mockController) Create() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Create")
	if err := m.createErr; err != nil {
		if m.createErrOnce {
			m.createErr = nil
		}
		return err
	}
	m.exists = true
	return nil
}

func (m *mockController) Configure(cfg wireguard.InterfaceConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Configure", cfg)
	if m.configureErr != nil {
		return m.configureErr
	}
	m.peers = make(map[string]wireguard.PeerObservation, len(cfg.Peers))
	for _, p := range cfg.Peers {
		m.peers[p.PublicKey.String()] = wireguard.PeerObservation{Endpoint: p.Endpoint}
	}
	return nil
}

func (m *mockController) ConfigurePeerRouting(peers []wireguard.PeerConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ConfigurePeerRouting", peers)
	return m.routingErr
}

func (m *mockController) Remove() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Remove")
	if m.removeErr != nil {
		return m.removeErr
	}
	m.exists = false
	m.peers = nil
	return nil
}

// reset clears the recorded calls, keeping the simulated state.
func (m *mockController) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// callsFor returns all recorded calls for the given method name.
func (m *mockController) callsFor(method string) []mockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []mockCall
	for _, c := range m.calls {
		if c.Method == method {
			result = append(result, c)
		}
	}
	return result
}

// methods returns the recorded method names in call order.
func (m *mockController) methods() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]string, 0, len(m.calls))
	for _, c := range m.calls {
		result = append(result, c.Method)
	}
	return result
}

// mutations returns the number of Create, Configure, ConfigurePeerRouting and Remove calls.
func (m *mockController) mutations() int {
	n := 0
	for _, method := range m.methods() {
		if method != "ReadState" {
			n++
		}
	}
	return n
}

// configured returns the InterfaceConfig of the last Configure call.
func (m *mockController) configured() (wireguard.InterfaceConfig, bool) {
	calls := m.callsFor("Configure")
	if len(calls) == 0 {
		return wireguard.InterfaceConfig{}, false
	}
	return calls[len(calls)-1].Args[0].(wireguard.InterfaceConfig), true
}

// fakeProber is a test double for probe.Prober.
type fakeProber struct {
	mu      sync.Mutex
	err     error
	fn      func(ctx context.Context) error
	targets []netip.Addr
	timeout time.Duration
}

func (p *fakeProber) Probe(ctx context.Context, addr netip.Addr, timeout time.Duration) error {
	p.mu.Lock()
	p.targets = append(p.targets, addr)
	p.timeout = timeout
	err, fn := p.err, p.fn
	p.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return err
}

func (p *fakeProber) probed() []netip.Addr {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]netip.Addr(nil), p.targets...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
