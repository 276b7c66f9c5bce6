package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plexsphere/tunneld/internal/fsutil"
	"github.com/plexsphere/tunneld/internal/wireguard"
)

var keygenOut string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a client private key",
	Long: "Generate a WireGuard private key. Without --out the key is printed to\n" +
		"stdout. With --out it is written to the file with mode 0600 and the\n" +
		"matching public key is printed instead.",
	Args: cobra.NoArgs,
	RunE: runKeygen,
}

func init() {
	keygenCmd.Flags().StringVar(&keygenOut, "out", "", "write the private key to this file")
	rootCmd.AddCommand(keygenCmd)
}

func runKeygen(cmd *cobra.Command, _ []string) error {
	priv, err := wireguard.GeneratePrivateKey()
	if err != nil {
		return fmt.Errorf("tunneld keygen: %w", err)
	}

	w := cmd.OutOrStdout()
	if keygenOut == "" {
		fmt.Fprintln(w, priv.String())
		return nil
	}

	if err := fsutil.WriteFileAtomic(keygenOut, []byte(priv.String()+"\n"), 0o600); err != nil {
		return fmt.Errorf("tunneld keygen: %w", err)
	}
	pub, err := wireguard.PublicKey(priv)
	if err != nil {
		return fmt.Errorf("tunneld keygen: %w", err)
	}
	fmt.Fprintln(w, pub.String())
	return nil
}
