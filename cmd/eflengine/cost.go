package main

import (
	"github.com/spf13/cobra"

	"github.com/watthive/eflengine/internal/plans"
)

func costCmd() *cobra.Command {
	var kwh float64

	cmd := &cobra.Command{
		Use:   "cost <plan-id>",
		Short: "Compute a bill for a stored plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			svc := plans.NewService(plans.Config{
				ToleranceCents: rt.cfg.Validate.ToleranceCents,
			}, plans.Deps{
				Store:  rt.store,
				Logger: rt.log,
			})

			res, err := svc.CostForPlan(cmd.Context(), args[0], plans.CostRequest{UsageKWh: kwh})
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}

	cmd.Flags().Float64Var(&kwh, "kwh", 1000, "monthly usage in kWh")
	return cmd
}
