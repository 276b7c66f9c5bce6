package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

func TestKeygenCommand_Stdout(t *testing.T) {
	keygenOut = ""
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"keygen"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("keygen: %v", err)
	}
	if _, err := wgtypes.ParseKey(strings.TrimSpace(buf.String())); err != nil {
		t.Errorf("keygen output %q is not a key: %v", buf.String(), err)
	}
}

func TestKeygenCommand_OutFileAndPubkey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.key")
	t.Cleanup(func() { keygenOut = "" })

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"keygen", "--out", path})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("keygen: %v", err)
	}
	printedPub := strings.TrimSpace(buf.String())

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("key file perm = %o, want 600", perm)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	priv, err := wgtypes.ParseKey(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("key file does not hold a key: %v", err)
	}
	if printedPub != priv.PublicKey().String() {
		t.Errorf("printed public key %q, want %q", printedPub, priv.PublicKey().String())
	}

	// pubkey must derive the same public key from the stored private key.
	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetIn(bytes.NewReader(data))
	rootCmd.SetArgs([]string{"pubkey"})
	t.Cleanup(func() { rootCmd.SetIn(nil) })

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("pubkey: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != printedPub {
		t.Errorf("pubkey = %q, want %q", got, printedPub)
	}
}

func TestPubkeyCommand_InvalidKey(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader("not a key\n"))
	rootCmd.SetArgs([]string{"pubkey"})
	t.Cleanup(func() { rootCmd.SetIn(nil) })

	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for invalid key")
	}
	if !strings.Contains(err.Error(), "tunneld pubkey") {
		t.Errorf("error should mention 'tunneld pubkey', got: %v", err)
	}
}
