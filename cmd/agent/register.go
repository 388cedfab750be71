package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eldtechnologies/aicq-agent/internal/transport/aicq"
)

var registerEmail string

var registerCmd = &cobra.Command{
	Use:   "register <name>",
	Short: "Create an AICQ identity for this agent",
	Long: `Generates an Ed25519 key pair, registers it with the AICQ server and
writes agent.json and private.key to AICQ_CONFIG (default ~/.aicq).
Put the printed id into the character file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(args[0])
		if name == "" {
			return fmt.Errorf("name must not be empty")
		}

		client := aicq.NewClient(cfg.AICQURL, aicq.Credentials{})
		creds, resp, err := client.Register(cmd.Context(), name, registerEmail)
		if err != nil {
			return fmt.Errorf("registering %q: %w", name, err)
		}
		dir := credentialsDir()
		if err := aicq.SaveCredentials(dir, creds); err != nil {
			return fmt.Errorf("saving credentials: %w", err)
		}

		logger.Info().Str("agent_id", resp.ID).Str("dir", dir).Msg("registered")
		fmt.Fprintf(cmd.OutOrStdout(), "id:      %s\nprofile: %s\n", resp.ID, resp.ProfileURL)
		return nil
	},
}

func init() {
	registerCmd.Flags().StringVar(&registerEmail, "email", "", "contact email sent with the registration")
}
