package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var pubkeyCmd = &cobra.Command{
	Use:   "pubkey",
	Short: "Print the public key for a private key read from stdin",
	Args:  cobra.NoArgs,
	RunE:  runPubkey,
}

func init() {
	rootCmd.AddCommand(pubkeyCmd)
}

func runPubkey(cmd *cobra.Command, _ []string) error {
	data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), 1024))
	if err != nil {
		return fmt.Errorf("tunneld pubkey: read stdin: %w", err)
	}
	pub, err := clientPublicKey(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("tunneld pubkey: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), pub)
	return nil
}
