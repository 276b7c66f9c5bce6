//go:build linux

package wireguard

import (
	"errors"
	"io"
	"log/slog"
	"net/netip"
	"strings"
	"testing"

	"github.com/google/nftables/expr"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Compile-time check that NetlinkController implements Controller.
var _ Controller = (*NetlinkController)(nil)

func TestNewNetlinkController_AppliesDefaults(t *testing.T) {
	ctrl := NewNetlinkController(Config{}, discardLogger())
	if ctrl == nil {
		t.Fatal("NewNetlinkController returned nil")
	}
	if ctrl.cfg.InterfaceName != "wg0" {
		t.Errorf("InterfaceName = %q, want wg0", ctrl.cfg.InterfaceName)
	}
	if ctrl.logger == nil {
		t.Fatal("logger field is nil")
	}
}

func TestReadStateNonExistent(t *testing.T) {
	ctrl := NewNetlinkController(Config{InterfaceName: "wg-tnd-absent"}, discardLogger())

	_, err := ctrl.ReadState()
	if err == nil {
		t.Fatal("ReadState() on absent interface returned nil error")
	}
	if !errors.Is(err, ErrNotFound) {
		// Opening the generic netlink family may be denied in sandboxes.
		t.Skipf("skipping: wgctrl unavailable: %v", err)
	}
}

func TestRemoveNonExistent(t *testing.T) {
	ctrl := NewNetlinkController(Config{InterfaceName: "wg-tnd-absent"}, discardLogger())

	// Removing an absent interface is idempotent; nftables access requires
	// CAP_NET_ADMIN, skip if we get a permission error.
	if err := ctrl.Remove(); err != nil {
		t.Skipf("skipping: requires elevated privileges: %v", err)
	}
}

func TestConfigurePeerRoutingNonExistent(t *testing.T) {
	ctrl := NewNetlinkController(Config{InterfaceName: "wg-tnd-absent"}, discardLogger())

	err := ctrl.ConfigurePeerRouting(nil)
	if err == nil {
		t.Fatal("expected error for non-existent interface")
	}

	expected := "wireguard: configure peer routing:"
	if !strings.HasPrefix(err.Error(), expected) {
		t.Errorf("expected error prefix %q, got %q", expected, err.Error())
	}
}

func TestCreateRequiresPrivileges(t *testing.T) {
	ctrl := NewNetlinkController(Config{InterfaceName: "wg-tnd-priv"}, discardLogger())

	err := ctrl.Create()
	if err == nil {
		// Cleanup if we somehow succeeded (running as root in CI).
		_ = ctrl.Remove()
		return
	}

	expected := "wireguard: create interface:"
	if !strings.HasPrefix(err.Error(), expected) {
		t.Errorf("expected error prefix %q, got %q", expected, err.Error())
	}
}

func TestToWGPeer(t *testing.T) {
	key, err := wgtypes.ParseKey("N9ZPcCtSJJQIp/GtfD5+EAiNQlyABe06GPEaibKtmws=")
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}

	peer := toWGPeer(PeerConfig{
		PublicKey:           key,
		Endpoint:            netip.MustParseAddrPort("192.0.0.1:51820"),
		AllowedIPs:          []netip.Prefix{netip.MustParsePrefix("10.33.0.0/16"), netip.MustParsePrefix("0.0.0.0/0")},
		PersistentKeepalive: PersistentKeepalive,
	})

	if peer.PublicKey != key {
		t.Errorf("PublicKey = %s, want %s", peer.PublicKey, key)
	}
	if peer.Endpoint == nil || peer.Endpoint.String() != "192.0.0.1:51820" {
		t.Errorf("Endpoint = %v, want 192.0.0.1:51820", peer.Endpoint)
	}
	if !peer.ReplaceAllowedIPs {
		t.Error("ReplaceAllowedIPs = false, want true")
	}
	if len(peer.AllowedIPs) != 2 {
		t.Fatalf("AllowedIPs length = %d, want 2", len(peer.AllowedIPs))
	}
	if got := peer.AllowedIPs[0].String(); got != "10.33.0.0/16" {
		t.Errorf("AllowedIPs[0] = %s, want 10.33.0.0/16", got)
	}
	if got := peer.AllowedIPs[1].String(); got != "0.0.0.0/0" {
		t.Errorf("AllowedIPs[1] = %s, want 0.0.0.0/0", got)
	}
	if peer.PersistentKeepaliveInterval == nil || *peer.PersistentKeepaliveInterval != PersistentKeepalive {
		t.Errorf("PersistentKeepaliveInterval = %v, want %v", peer.PersistentKeepaliveInterval, PersistentKeepalive)
	}
}

func TestToWGPeer_NoEndpointNoKeepalive(t *testing.T) {
	peer := toWGPeer(PeerConfig{})
	if peer.Endpoint != nil {
		t.Errorf("Endpoint = %v, want nil", peer.Endpoint)
	}
	if peer.PersistentKeepaliveInterval != nil {
		t.Errorf("PersistentKeepaliveInterval = %v, want nil", *peer.PersistentKeepaliveInterval)
	}
}

func TestPolicyRules(t *testing.T) {
	rules := policyRules(51820)
	if len(rules) != 2 {
		t.Fatalf("len(rules) = %d, want 2", len(rules))
	}

	marked := rules[0]
	if marked.Table != 51820 || marked.Mark != 51820 || !marked.Invert {
		t.Errorf("marked rule = %+v, want table 51820 not fwmark 51820", marked)
	}
	suppress := rules[1]
	if suppress.Table != unix.RT_TABLE_MAIN || suppress.SuppressPrefixlen != 0 {
		t.Errorf("suppress rule = %+v, want main suppress_prefixlength 0", suppress)
	}
	if suppress.Priority >= marked.Priority {
		t.Errorf("suppress priority %d not before marked priority %d", suppress.Priority, marked.Priority)
	}

	for _, r := range rules {
		if !isPolicyRule(*r, 51820) {
			t.Errorf("isPolicyRule(%s) = false, want true", r)
		}
	}
}

func TestIsPolicyRule_IgnoresOthers(t *testing.T) {
	other := netlink.NewRule()
	other.Priority = markedRulePriority
	other.Table = 100
	other.Mark = 100
	other.Invert = true
	if isPolicyRule(*other, 51820) {
		t.Error("isPolicyRule matched a rule for another table")
	}

	plain := netlink.NewRule()
	plain.Priority = suppressRulePriority
	plain.Table = unix.RT_TABLE_MAIN
	if isPolicyRule(*plain, 51820) {
		t.Error("isPolicyRule matched the main table rule without suppress_prefixlength")
	}
}

func TestIsPolicyRule_IgnoresForeignPriorities(t *testing.T) {
	// Rules as wg-quick leaves them for another tunnel on the same host.
	suppress := netlink.NewRule()
	suppress.Priority = 32764
	suppress.Table = unix.RT_TABLE_MAIN
	suppress.SuppressPrefixlen = 0
	if isPolicyRule(*suppress, 51820) {
		t.Error("isPolicyRule matched a suppress_prefixlength rule at a foreign priority")
	}

	marked := netlink.NewRule()
	marked.Priority = 32765
	marked.Table = 51820
	marked.Mark = 51820
	marked.Invert = true
	if isPolicyRule(*marked, 51820) {
		t.Error("isPolicyRule matched a fwmark rule at a foreign priority")
	}
}

func TestSpoofGuardExprs(t *testing.T) {
	exprs := spoofGuardExprs("wg0", netip.MustParseAddr("10.6.0.30"))
	if len(exprs) != 8 {
		t.Fatalf("len(exprs) = %d, want 8", len(exprs))
	}

	iif, ok := exprs[1].(*expr.Cmp)
	if !ok || iif.Op != expr.CmpOpNeq || string(iif.Data) != "wg0\x00" {
		t.Errorf("iifname match = %+v, want != \"wg0\"", exprs[1])
	}
	daddr, ok := exprs[3].(*expr.Cmp)
	if !ok || len(daddr.Data) != 4 || daddr.Data[0] != 10 || daddr.Data[3] != 30 {
		t.Errorf("daddr match = %+v, want 10.6.0.30", exprs[3])
	}
	verdict, ok := exprs[7].(*expr.Verdict)
	if !ok || verdict.Kind != expr.VerdictDrop {
		t.Errorf("verdict = %+v, want drop", exprs[7])
	}
}

func TestSpoofGuardTable(t *testing.T) {
	if got := spoofGuardTable("wg0"); got != "tunneld-wg0" {
		t.Errorf("spoofGuardTable = %q, want tunneld-wg0", got)
	}
}

func TestPrefixToIPNet(t *testing.T) {
	n := prefixToIPNet(netip.MustParsePrefix("10.6.0.0/24"))
	if n.String() != "10.6.0.0/24" {
		t.Errorf("prefixToIPNet = %s, want 10.6.0.0/24", n)
	}
}
