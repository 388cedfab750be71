package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an Ed25519 key pair for a webhook relay",
	Long: `Prints a new key pair. Add the public key to WEBHOOK_PUBLIC_KEYS as
<relay-id>=<public key> and give the private key to the relay.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Public key (base64):  %s\n", base64.StdEncoding.EncodeToString(pub))
		fmt.Fprintf(out, "Private key (base64): %s\n", base64.StdEncoding.EncodeToString(priv.Seed()))
		return nil
	},
}
