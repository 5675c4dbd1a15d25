package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bgsim/internal/driver"
)

// useTinyModel swaps the published experiment for one that runs in
// milliseconds.
func useTinyModel(t *testing.T) {
	t.Helper()
	orig := experiment
	experiment = func() driver.Model {
		m := driver.Table1Line4()
		m.N = 12
		m.Params.SimLen = 20 * m.N
		m.Params.Rates.Selected = 0.3
		m.Params.Rates.Recombination = 0.3
		m.TrackFrom = uint32(10 * m.N)
		return m
	}
	t.Cleanup(func() {
		experiment = orig
	})
	t.Setenv("BGS_OTEL_ENDPOINT", "")
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := execute(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRootRequiresExactlyOneSeed(t *testing.T) {
	useTinyModel(t)
	for _, args := range [][]string{nil, {"1", "2"}} {
		if _, _, err := runCLI(t, args...); err == nil {
			t.Fatalf("expected argument error for %v", args)
		}
	}
}

func TestRootRejectsNonIntegerSeed(t *testing.T) {
	useTinyModel(t)
	for _, arg := range []string{"abc", "1.5", "-3"} {
		stdout, _, err := runCLI(t, arg)
		if err == nil {
			t.Fatalf("expected error for seed %q", arg)
		}
		if stdout != "" {
			t.Fatalf("nothing should be printed for seed %q, got %q", arg, stdout)
		}
	}
}

func TestRootPrintsReport(t *testing.T) {
	useTinyModel(t)
	stdout, _, err := runCLI(t, "42")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.HasPrefix(stdout, "{") || !strings.HasSuffix(stdout, "}\n") {
		t.Fatalf("unexpected report %q", stdout)
	}
	if strings.Count(stdout, "\n") != 1 {
		t.Fatalf("repr report must be a single line, got %q", stdout)
	}

	again, _, err := runCLI(t, "42")
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if again != stdout {
		t.Fatal("same seed produced different reports")
	}
}

func TestRootCSVFormatAndLogLevel(t *testing.T) {
	useTinyModel(t)
	stdout, stderr, err := runCLI(t, "7", "--format", "csv", "--log-level", "debug")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.HasPrefix(stdout, "origin,position,effect,step,count\n") {
		t.Fatalf("unexpected csv report %q", stdout)
	}
	if !strings.Contains(stderr, "run finished") {
		t.Fatalf("expected run log on stderr, got %q", stderr)
	}
}

func TestRootRejectsInvalidSettings(t *testing.T) {
	useTinyModel(t)
	if _, _, err := runCLI(t, "1", "--format", "xml"); err == nil {
		t.Fatal("expected invalid format error")
	}
	t.Setenv("BGS_STORE", "redis")
	if _, _, err := runCLI(t, "1"); err == nil {
		t.Fatal("expected invalid store error")
	}
}

func TestBatchPrintsSeedsInOrder(t *testing.T) {
	useTinyModel(t)
	stdout, _, err := runCLI(t, "batch", "--seeds", "3,1", "--workers", "2")
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	first := strings.Index(stdout, "# seed=3 ")
	second := strings.Index(stdout, "# seed=1 ")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("unexpected batch output %q", stdout)
	}
	if _, _, err := runCLI(t, "batch"); err == nil {
		t.Fatal("expected missing seeds error")
	}
	if _, _, err := runCLI(t, "batch", "--seeds", "1,x"); err == nil {
		t.Fatal("expected bad seed error")
	}
}

func TestRunsAndShowReadArtifacts(t *testing.T) {
	useTinyModel(t)
	dir := filepath.Join(t.TempDir(), "runs")

	report, _, err := runCLI(t, "11", "--artifacts-dir", dir)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	listing, _, err := runCLI(t, "runs", "--artifacts-dir", dir, "--format", "json")
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	start := strings.Index(listing, `"id":"`)
	if start < 0 {
		t.Fatalf("expected a listed run, got %q", listing)
	}
	rest := listing[start+len(`"id":"`):]
	runID := rest[:strings.Index(rest, `"`)]

	shown, _, err := runCLI(t, "show", runID, "--artifacts-dir", dir)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if shown != report {
		t.Fatalf("show output differs from run output:\n%s\n%s", shown, report)
	}
}

func TestExportCopiesRunArtifacts(t *testing.T) {
	useTinyModel(t)
	dir := filepath.Join(t.TempDir(), "runs")
	outDir := filepath.Join(t.TempDir(), "exports")

	if _, _, err := runCLI(t, "13", "--artifacts-dir", dir, "--format", "csv"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, _, err := runCLI(t, "export", "--artifacts-dir", dir, "--out", outDir); err == nil {
		t.Fatal("expected error without a run id or --latest")
	}

	stdout, _, err := runCLI(t, "export", "--latest", "--artifacts-dir", dir, "--out", outDir)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	exported := strings.TrimSpace(stdout)
	if filepath.Dir(exported) != filepath.Clean(outDir) {
		t.Fatalf("unexpected export dir %q", exported)
	}
	for _, name := range []string{"run.json", "summary.json", "trajectories.csv"} {
		if _, err := os.Stat(filepath.Join(exported, name)); err != nil {
			t.Fatalf("expected exported %s: %v", name, err)
		}
	}

	runID := filepath.Base(exported)
	again, _, err := runCLI(t, "export", runID, "--artifacts-dir", dir, "--out", outDir)
	if err != nil {
		t.Fatalf("export by id: %v", err)
	}
	if strings.TrimSpace(again) != exported {
		t.Fatalf("export by id wrote %q, want %q", again, exported)
	}
}

func TestRunsEmpty(t *testing.T) {
	useTinyModel(t)
	stdout, _, err := runCLI(t, "runs")
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if strings.TrimSpace(stdout) != "no runs found" {
		t.Fatalf("unexpected output %q", stdout)
	}
	if _, _, err := runCLI(t, "show", "missing"); err == nil {
		t.Fatal("expected missing run error")
	}
}
