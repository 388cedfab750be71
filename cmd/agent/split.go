package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/eldtechnologies/aicq-agent/internal/chunker"
)

var splitMaxLen int

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Split stdin into transport-sized chunks",
	Long: `Reads a reply from stdin and prints the chunks the agent would post,
each under a header with its size. Chunks holding a line longer than the
limit are marked.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		text, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return err
		}
		maxLen := splitMaxLen
		if maxLen <= 0 {
			maxLen = cfg.MaxMessageLength
		}

		out := cmd.OutOrStdout()
		chunks := chunker.Split(string(text), maxLen)
		for i, c := range chunks {
			mark := ""
			if len(c) > maxLen {
				mark = " oversized"
			}
			fmt.Fprintf(out, "--- chunk %d/%d (%d bytes)%s ---\n%s\n", i+1, len(chunks), len(c), mark, c)
		}
		return nil
	},
}

func init() {
	splitCmd.Flags().IntVar(&splitMaxLen, "max", 0, "chunk size limit in bytes (default MAX_MESSAGE_LENGTH)")
}
