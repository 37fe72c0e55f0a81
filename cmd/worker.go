package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AnnixInvestments/annix-sub017/internal/messaging"
)

const reminderRunTimeout = 10 * time.Minute

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker to recompute supplier access on capability changes and send quote reminders`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	app, err := newApplication(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	g, ctx := errgroup.WithContext(ctx)

	// Consume capability change events
	if app.bus != nil {
		receiver, err := messaging.NewReceiver(app.bus, cfg.Azure.CapabilityQueue)
		if err != nil {
			return err
		}
		g.Go(func() error {
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
				defer cancel()
				if err := receiver.Close(closeCtx); err != nil {
					log.Warn().Err(err).Msg("Failed to close receiver")
				}
			}()
			log.Info().Str("queue", cfg.Azure.CapabilityQueue).Msg("Starting capability change consumer")
			return messaging.Consume(ctx, receiver, cfg.Azure.BatchSize, app.distribution.HandleCapabilityMessage, app.metrics)
		})
	} else {
		log.Warn().Msg("Azure Service Bus not configured, capability changes will not be consumed")
	}

	// Send due quote reminders on a schedule
	if cfg.Reminders.Enabled {
		g.Go(func() error {
			scheduler, err := gocron.NewScheduler()
			if err != nil {
				return err
			}

			_, err = scheduler.NewJob(
				gocron.DurationJob(cfg.Reminders.Interval),
				gocron.NewTask(func() {
					runCtx, cancel := context.WithTimeout(ctx, reminderRunTimeout)
					defer cancel()

					sent, err := app.reminders.SendDueReminders(runCtx)
					if err != nil {
						log.Error().Err(err).Msg("Failed to send due reminders")
						return
					}
					log.Info().Int("sent", sent).Msg("Reminder run finished")
				}),
				gocron.WithSingletonMode(gocron.LimitModeReschedule),
			)
			if err != nil {
				return err
			}

			log.Info().Dur("interval", cfg.Reminders.Interval).Msg("Starting reminder scheduler")
			scheduler.Start()

			<-ctx.Done()
			return scheduler.Shutdown()
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}
