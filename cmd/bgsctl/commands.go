package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"bgsim/internal/model"
	"bgsim/internal/report"
	"bgsim/pkg/bgs"
)

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run several independent seeds concurrently",
		Long: `Run one simulation per seed with a bounded number of workers.
Reports are printed in seed order, each preceded by a "# seed=<seed> run=<id>" line.

Examples:
  bgsctl batch --seeds 1,2,3
  bgsctl batch --seeds 10,11 --workers 1 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetStringSlice("seeds")
			seeds, err := parseSeeds(raw)
			if err != nil {
				return err
			}
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.close(cmd.Context())

			results, err := s.client.Batch(cmd.Context(), bgs.BatchRequest{Seeds: seeds, Workers: s.cfg.Workers})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range results {
				fmt.Fprintf(out, "# seed=%d run=%s\n", r.Seed, r.RunID)
				if err := report.Write(out, s.cfg.Format, r.Trajectories); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringSlice("seeds", nil, "comma-separated seeds")
	cmd.Flags().Int("workers", 0, "concurrent runs (0 = one per CPU)")
	return cmd
}

func parseSeeds(raw []string) ([]uint64, error) {
	if len(raw) == 0 {
		return nil, errors.New("--seeds is required")
	}
	seeds := make([]uint64, 0, len(raw))
	for _, r := range raw {
		seed, err := parseSeed(strings.TrimSpace(r))
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, seed)
	}
	return seeds, nil
}

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.close(cmd.Context())

			entries, err := s.client.Runs(cmd.Context(), bgs.RunsRequest{Limit: limit})
			if err != nil {
				return err
			}
			return writeRuns(cmd.OutOrStdout(), s.cfg.Format, entries)
		},
	}
	cmd.Flags().Int("limit", 20, "max runs to list (0 = all)")
	return cmd
}

func writeRuns(w io.Writer, format string, entries []model.RunIndexEntry) error {
	if format == report.FormatJSON {
		if entries == nil {
			entries = []model.RunIndexEntry{}
		}
		return json.NewEncoder(w).Encode(entries)
	}
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "no runs found")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tCREATED\tSEED\tTRAJECTORIES\tFIXATIONS\tSCALED_TMRCA")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%.4f\n", e.ID, e.CreatedAtUTC, e.Seed, e.Trajectories, e.Fixations, e.ScaledTMRCA)
	}
	return tw.Flush()
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the trajectories of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.close(cmd.Context())

			run, err := s.client.Show(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return report.Write(cmd.OutOrStdout(), s.cfg.Format, bgs.Trajectories(run))
		},
	}
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [run-id]",
		Short: "Copy a run's artifacts to another directory",
		Long: `Copy run.json, summary.json and trajectories.csv of a run into <out>/<run-id>.
Runs recorded only in the store are rendered to the same files.

Examples:
  bgsctl export bgs-7-1760000000 --out ./exports
  bgsctl export --latest --artifacts-dir ./runs`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outDir, _ := cmd.Flags().GetString("out")
			latest, _ := cmd.Flags().GetBool("latest")
			req := bgs.ExportRequest{Latest: latest, OutDir: outDir}
			if len(args) == 1 {
				req.RunID = args[0]
			} else if !latest {
				return errors.New("export requires a run id or --latest")
			}

			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.close(cmd.Context())

			dir, err := s.client.Export(cmd.Context(), req)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), dir)
			return err
		},
	}
	cmd.Flags().String("out", "exports", "destination directory")
	cmd.Flags().Bool("latest", false, "export the newest run")
	return cmd
}
