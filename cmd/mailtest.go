// File: cmd/mailtest.go
package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kitsched/autopunch/internal/config"
	"github.com/kitsched/autopunch/internal/mail"
	"github.com/kitsched/autopunch/internal/observability"
)

// mailTestLookback is how far back the self-test scans. Generous on purpose:
// the point is to verify IMAP access and extraction, not freshness.
const mailTestLookback = 10 * time.Minute

// newMailTestCmd creates the `mail-test` command. It performs a single inbox
// scan without opening a browser, so mailbox credentials and the extraction
// rules can be verified independently of the portal.
func newMailTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mail-test",
		Short: "Verifies IMAP access by scanning the inbox for a recent verification code",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			cfg, err := config.NewFromViper(viper.GetViper())
			if err != nil {
				return err
			}
			if err := cfg.ValidateMailbox(); err != nil {
				return err
			}

			logger.Info("Scanning the inbox.",
				zap.String("host", cfg.Mailbox.Host),
				zap.Duration("lookback", mailTestLookback))

			fetcher := mail.NewFetcher(cfg.Mailbox, logger)
			code, found := fetcher.Fetch(cmd.Context(), time.Now().Add(-mailTestLookback))
			if found {
				logger.Info("Mailbox access works; a verification code was found.",
					zap.Int("code_length", len(code)))
			} else {
				logger.Info("Mailbox access works; no recent verification code in the inbox.")
			}
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(newMailTestCmd())
}
