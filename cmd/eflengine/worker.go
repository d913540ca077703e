package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/watthive/eflengine/internal/alerting"
	"github.com/watthive/eflengine/internal/cron"
	"github.com/watthive/eflengine/internal/notification"
	"github.com/watthive/eflengine/internal/plans"
)

func workerCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the background revalidation worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			svc := plans.NewService(plans.Config{
				ToleranceCents: rt.cfg.Validate.ToleranceCents,
			}, plans.Deps{
				Store:    rt.store,
				Notifier: notification.NewService(rt.store),
				Logger:   rt.log,
			})

			if once {
				sweep, err := cron.Sweep(ctx, svc, rt.store, rt.log)
				if err != nil {
					return err
				}
				fmt.Printf("swept %d plans: %d quarantined, %d errors in %s\n",
					sweep.Total, len(sweep.Quarantined), sweep.Errors, sweep.Duration)
				return nil
			}

			err = cron.Run(ctx, cron.Deps{
				Store:                 rt.store,
				Plans:                 svc,
				Alerter:               alerting.New(rt.cfg.Alerts.WebhookURL, rt.cfg.Alerts.WebhookType, rt.log),
				Logger:                rt.log,
				IntervalSetting:       rt.cfg.Worker.RevalidateInterval,
				MinQuarantinedToAlert: rt.cfg.Alerts.MinFailures,
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run a single sweep and exit")
	return cmd
}
