package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"bgsim/internal/driver"
	"bgsim/internal/report"
	"bgsim/pkg/bgs"
)

// experiment builds the model every command runs.
var experiment = driver.Table1Line4

func main() {
	if err := execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bgsctl <seed>",
		Short: "Background selection around a non-recombining neutral region",
		Long: `bgsctl evolves a Wright-Fisher population of N=1600 diploids for 20N
generations under purifying selection in two recombining flanks
([0, 1/3) and [2/3, 1]) and prints the copy-number trajectory of every
selected mutation that segregated after generation 10N.

Examples:
  bgsctl 42
  bgsctl 42 --format csv > trajectories.csv
  bgsctl batch --seeds 1,2,3 --workers 3
  bgsctl runs --store sqlite --db-path runs.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := parseSeed(args[0])
			if err != nil {
				return err
			}
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.close(cmd.Context())

			summary, err := s.client.Run(cmd.Context(), bgs.RunRequest{Seed: seed})
			if err != nil {
				return err
			}
			return report.Write(cmd.OutOrStdout(), s.cfg.Format, summary.Trajectories)
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "YAML config file")
	flags.String("format", "", "output format: repr|json|csv")
	flags.String("store", "", "run store backend: memory|sqlite")
	flags.String("db-path", "", "sqlite database path")
	flags.String("log-level", "", "log level: info|debug|trace")
	flags.String("artifacts-dir", "", "write per-run artifacts under this directory")

	rootCmd.AddCommand(
		newBatchCmd(),
		newRunsCmd(),
		newShowCmd(),
		newExportCmd(),
	)
	return rootCmd
}

func parseSeed(arg string) (uint64, error) {
	seed, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("seed must be a non-negative integer, got %q", arg)
	}
	return seed, nil
}
