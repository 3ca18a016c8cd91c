package cli

import (
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the treasury manager service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app, err := buildApplication(ctx, cfg)
		if err != nil {
			return err
		}
		defer app.close()

		// Boot counts as a connectivity-restore event: anything queued while
		// the service was down replays before the first cycle.
		results := app.scheduler.OnConnectivityRestored(ctx)
		if len(results) > 0 {
			log.Info().Int("replayed", len(results)).Msg("Startup intent replay complete")
		}

		if cfg.Scheduler.AutoStart {
			if err := app.scheduler.Start(); err != nil {
				return err
			}
		} else {
			log.Info().Msg("Scheduler auto-start disabled, waiting for commands")
		}

		go func() {
			if err := app.server.Start(); err != nil {
				log.Error().Err(err).Msg("Web server stopped")
				stop()
			}
		}()

		<-ctx.Done()
		log.Info().Msg("Shutting down")
		app.scheduler.Stop()
		return nil
	},
}
