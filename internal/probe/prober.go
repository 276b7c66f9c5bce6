// Package probe checks reachability of the tunnel's far side with ICMP echo.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

var (
	// ErrUnreachable means the echo request was sent, or could not be
	// routed, and no reply arrived in time.
	ErrUnreachable = errors.New("probe: unreachable")

	// ErrUnavailable means no ICMP socket could be set up on this host.
	// It says nothing about the peer.
	ErrUnavailable = errors.New("probe: unavailable")
)

// Prober performs a single best-effort reachability check.
// Implementations must not retry internally.
type Prober interface {
	Probe(ctx context.Context, addr netip.Addr, timeout time.Duration) error
}

// payload is carried in every echo request.
var payload = []byte("tunneld-probe")

// ICMPProber implements Prober with one ICMP echo request per call.
type ICMPProber struct {
	cfg    Config
	logger *slog.Logger
	id     int
	seq    atomic.Uint32

	listen func(network, address string) (*icmp.PacketConn, error)
	euid   func() int
}

// NewICMPProber creates a new ICMPProber.
func NewICMPProber(cfg Config, logger *slog.Logger) *ICMPProber {
	return &ICMPProber{
		cfg:    cfg,
		logger: logger,
		id:     os.Getpid() & 0xffff,
		listen: icmp.ListenPacket,
		euid:   os.Geteuid,
	}
}

// Probe sends an echo request to addr and waits for the matching reply until
// timeout elapses or ctx is done. A non-positive timeout uses DefaultTimeout.
// Local socket failures wrap ErrUnavailable, every other failure wraps
// ErrUnreachable.
func (p *ICMPProber) Probe(ctx context.Context, addr netip.Addr, timeout time.Duration) error {
	if !addr.Is4() {
		return fmt.Errorf("%w: %s is not an IPv4 address", ErrUnreachable, addr)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	conn, privileged, err := p.open()
	if err != nil {
		return err
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("%w: set deadline: %v", ErrUnavailable, err)
	}

	// Unblock ReadFrom when ctx is cancelled.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	seq := int(p.seq.Add(1) & 0xffff)
	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{ID: p.id, Seq: seq, Data: payload},
	}
	wb, err := msg.Marshal(nil)
	if err != nil {
		return fmt.Errorf("%w: marshal echo: %v", ErrUnavailable, err)
	}

	start := time.Now()
	if _, err := conn.WriteTo(wb, destination(addr, privileged)); err != nil {
		return fmt.Errorf("%w: send to %s: %v", ErrUnreachable, addr, err)
	}

	rb := make([]byte, 1500)
	for {
		n, from, err := conn.ReadFrom(rb)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("%w: %s: %v", ErrUnreachable, addr, ctxErr)
			}
			return fmt.Errorf("%w: %s: %v", ErrUnreachable, addr, err)
		}
		// Datagram sockets get their echo ID rewritten by the kernel.
		if !isEchoReply(rb[:n], from, addr, p.id, seq, privileged) {
			continue
		}

		p.logger.Debug("probe succeeded",
			"component", "probe",
			"address", addr.String(),
			"rtt", time.Since(start),
		)
		return nil
	}
}

// open returns an ICMP socket and whether it is a raw one. An unprivileged
// datagram socket is refused when the process group is outside
// net.ipv4.ping_group_range; root then falls back to a raw socket.
func (p *ICMPProber) open() (*icmp.PacketConn, bool, error) {
	if p.cfg.Privileged {
		conn, err := p.listen("ip4:icmp", "0.0.0.0")
		if err != nil {
			return nil, false, fmt.Errorf("%w: listen ip4:icmp: %v", ErrUnavailable, err)
		}
		return conn, true, nil
	}

	conn, err := p.listen("udp4", "0.0.0.0")
	if err == nil {
		return conn, false, nil
	}
	if p.euid() != 0 {
		return nil, false, fmt.Errorf("%w: listen udp4: %v", ErrUnavailable, err)
	}

	p.logger.Debug("datagram ICMP socket refused, using raw socket",
		"component", "probe",
		"error", err,
	)
	conn, rawErr := p.listen("ip4:icmp", "0.0.0.0")
	if rawErr != nil {
		return nil, false, fmt.Errorf("%w: listen udp4: %v; listen ip4:icmp: %v", ErrUnavailable, err, rawErr)
	}
	return conn, true, nil
}

func destination(addr netip.Addr, privileged bool) net.Addr {
	if privileged {
		return &net.IPAddr{IP: addr.AsSlice()}
	}
	return &net.UDPAddr{IP: addr.AsSlice()}
}

// isEchoReply reports whether b is the echo reply from target for seq.
func isEchoReply(b []byte, from net.Addr, target netip.Addr, id, seq int, checkID bool) bool {
	if src, ok := addrOf(from); !ok || src != target {
		return false
	}

	msg, err := icmp.ParseMessage(ipv4.ICMPTypeEcho.Protocol(), b)
	if err != nil || msg.Type != ipv4.ICMPTypeEchoReply {
		return false
	}
	echo, ok := msg.Body.(*icmp.Echo)
	if !ok || echo.Seq != seq {
		return false
	}
	return !checkID || echo.ID == id
}

func addrOf(a net.Addr) (netip.Addr, bool) {
	var ip net.IP
	switch v := a.(type) {
	case *net.UDPAddr:
		ip = v.IP
	case *net.IPAddr:
		ip = v.IP
	default:
		return netip.Addr{}, false
	}
	addr, ok := netip.AddrFromSlice(ip)
	return addr.Unmap(), ok
}
