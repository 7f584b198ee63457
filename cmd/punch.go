// File: cmd/punch.go
package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kitsched/autopunch/internal/browser"
	"github.com/kitsched/autopunch/internal/config"
	"github.com/kitsched/autopunch/internal/mail"
	"github.com/kitsched/autopunch/internal/notify"
	"github.com/kitsched/autopunch/internal/observability"
	"github.com/kitsched/autopunch/internal/portal"
	"github.com/kitsched/autopunch/internal/runner"
)

// newPunchCmd creates and configures the `punch` command.
func newPunchCmd() *cobra.Command {
	punchCmd := &cobra.Command{
		Use:   "punch",
		Short: "Performs one clock-in or clock-out run against the portal",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their Viper keys so command-line flags override
			// values from the config file and environment variables.
			if err := viper.BindPFlag("browser.debug", cmd.Flags().Lookup("debug")); err != nil {
				return err
			}
			return viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			// Re-build the config now that flags are bound, so overrides
			// apply with the right precedence.
			cfg, err := config.NewFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			action, err := portal.ParseAction(viper.GetString("action"))
			if err != nil {
				return err
			}

			var opts []runner.Option
			if viper.GetBool("no-delay") {
				opts = append(opts, runner.WithoutDelay())
			}
			if viper.GetBool("skip-weekday-check") {
				opts = append(opts, runner.WithoutWeekdayGate())
			}

			controller := runner.NewController(
				cfg,
				newSessionFactory(cfg, logger),
				notify.NewClient(cfg.Telegram, logger),
				logger,
				opts...,
			)
			return controller.Run(ctx, action)
		},
	}

	punchCmd.Flags().StringP("action", "a", "", "Punch direction: 'clock-in' or 'clock-out' (required)")
	punchCmd.Flags().Bool("no-delay", false, "Skip the randomized start delay")
	punchCmd.Flags().Bool("skip-weekday-check", false, "Run even on weekends")
	punchCmd.Flags().Bool("debug", false, "Save step-by-step screenshots (overrides config/env)")
	punchCmd.Flags().Bool("headless", true, "Run the browser headless (overrides config/env)")
	_ = punchCmd.MarkFlagRequired("action")
	_ = viper.BindPFlag("action", punchCmd.Flags().Lookup("action"))
	_ = viper.BindPFlag("no-delay", punchCmd.Flags().Lookup("no-delay"))
	_ = viper.BindPFlag("skip-weekday-check", punchCmd.Flags().Lookup("skip-weekday-check"))

	return punchCmd
}

// newSessionFactory wires a fresh browser session, mail poller, and portal
// flow into one PortalSession per attempt.
func newSessionFactory(cfg *config.Config, logger *zap.Logger) runner.SessionFactory {
	return func(ctx context.Context) (runner.PortalSession, error) {
		session, err := browser.NewSession(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}

		var codes portal.CodeSource
		if cfg.Mailbox.Configured() {
			fetcher := mail.NewFetcher(cfg.Mailbox, logger)
			codes = mail.NewPoller(fetcher, cfg.Mailbox, logger)
		}

		return &attemptSession{
			session: session,
			flow:    portal.NewFlow(session, cfg, codes, logger),
		}, nil
	}
}

// attemptSession adapts a browser session plus portal flow to the runner's
// PortalSession surface.
type attemptSession struct {
	session *browser.Session
	flow    *portal.Flow
}

func (a *attemptSession) Login(ctx context.Context) error {
	return a.flow.Login(ctx)
}

func (a *attemptSession) Punch(ctx context.Context, action portal.Action) error {
	return a.flow.Punch(ctx, action)
}

func (a *attemptSession) Close() {
	a.session.Close()
}

func init() {
	rootCmd.AddCommand(newPunchCmd())
}
