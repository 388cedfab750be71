package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/eldtechnologies/aicq-agent/internal/transport/aicq"
)

var signBodyFile string

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Print signature headers for a request body",
	Long: `Signs a request body with the agent's AICQ key and prints the X-AICQ-*
headers, ready for curl. Reads the body from stdin unless --body is given.

Example:
  echo '{"room_id":"r","author_id":"1","text":"hi"}' > ev.json
  curl -X POST localhost:8080/events --data @ev.json $(aicq-agent sign --body ev.json)`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		creds, err := aicq.LoadCredentials(credentialsDir())
		if err != nil {
			return err
		}

		var body []byte
		if signBodyFile != "" {
			body, err = os.ReadFile(signBodyFile)
		} else {
			body, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return fmt.Errorf("reading body: %w", err)
		}

		nonce := make([]byte, 16)
		if _, err := rand.Read(nonce); err != nil {
			return err
		}
		headers := aicq.SignRequest(creds, body, hex.EncodeToString(nonce), time.Now())

		out := cmd.OutOrStdout()
		for _, name := range []string{"Content-Type", "X-AICQ-Agent", "X-AICQ-Nonce", "X-AICQ-Timestamp", "X-AICQ-Signature"} {
			fmt.Fprintf(out, "-H '%s: %s' ", name, headers.Get(name))
		}
		fmt.Fprintln(out)
		return nil
	},
}

func init() {
	signCmd.Flags().StringVar(&signBodyFile, "body", "", "file containing the request body")
}
