package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/watthive/eflengine/internal/config"
	"github.com/watthive/eflengine/internal/plans"
	"github.com/watthive/eflengine/internal/storage"
)

func parseCmd() *cobra.Command {
	var showDocument bool

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Run a disclosure file through the pipeline and print the outcome",
		Long: `Parse ingests one file into a throwaway in-memory store, so nothing is
persisted. Files ending in .json are treated as structured plan documents,
.txt as disclosure text, and anything else as a PDF.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			svc := plans.NewService(plans.Config{
				ToleranceCents: cfg.Validate.ToleranceCents,
			}, plans.Deps{
				Store:     storage.NewMemory(),
				Extractor: buildExtractor(cfg),
			})

			ctx := cmd.Context()
			name := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))

			var out any
			var planID string
			switch strings.ToLower(filepath.Ext(args[0])) {
			case ".json":
				res, err := svc.IngestDocument(ctx, data)
				if err != nil {
					return err
				}
				out, planID = res, res.PlanID
			case ".txt":
				res, err := svc.IngestEFLText(ctx, string(data), name)
				if err != nil {
					return err
				}
				out, planID = res, res.PlanID
			default:
				res, err := svc.IngestEFLBytes(ctx, data, name)
				if err != nil {
					return err
				}
				out, planID = res, res.PlanID
			}

			if err := printJSON(out); err != nil {
				return err
			}

			if showDocument {
				rec, err := svc.GetPlan(ctx, planID)
				if err != nil {
					return err
				}
				var pretty json.RawMessage = rec.Document
				return printJSON(pretty)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showDocument, "document", false, "also print the normalized stored document")
	return cmd
}
