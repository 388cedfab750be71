package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eldtechnologies/aicq-agent/internal/config"
	"github.com/eldtechnologies/aicq-agent/internal/crypto"
	"github.com/eldtechnologies/aicq-agent/internal/team"
)

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate the character file and webhook keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := config.LoadCharacter(cfg.CharacterFile, logger)
		if err != nil {
			return err
		}
		if _, err := crypto.NewKeyring(cfg.WebhookPublicKeys); err != nil {
			return fmt.Errorf("WEBHOOK_PUBLIC_KEYS: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "character: %s (@%s, id %s)\n", c.Name, c.Handle, c.ID)
		fmt.Fprintf(out, "rooms:     %s\n", strings.Join(c.Rooms, ", "))
		fmt.Fprintf(out, "mentions only: %t\n", c.MentionsOnly)

		t := c.TeamConfig()
		if !t.Enabled {
			fmt.Fprintln(out, "team:      off")
			return nil
		}
		role := "member"
		if team.SameID(c.ID, t.LeaderID) {
			role = "leader"
		}
		fmt.Fprintf(out, "team:      %s of %d (leader %s)\n", role, len(t.MemberIDs), t.LeaderID)
		fmt.Fprintf(out, "keywords:  %s\n", strings.Join(t.Keywords, ", "))
		fmt.Fprintf(out, "webhook signers: %d\n", len(cfg.WebhookPublicKeys))
		return nil
	},
}
