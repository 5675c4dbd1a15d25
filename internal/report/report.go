// Package report renders recorded trajectories for standard output.
package report

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"bgsim/internal/freqtracker"
)

const (
	FormatRepr = "repr"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

func ValidFormat(format string) bool {
	switch format {
	case FormatRepr, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// Write dumps trajectories in the requested format without filtering.
func Write(w io.Writer, format string, trajectories []freqtracker.Trajectory) error {
	switch format {
	case "", FormatRepr:
		return writeRepr(w, trajectories)
	case FormatJSON:
		return writeJSON(w, trajectories)
	case FormatCSV:
		return writeCSV(w, trajectories)
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

// writeRepr prints the keyed collection on one line:
// {(origin, position, effect): [c1, c2, ...], ...}
func writeRepr(w io.Writer, trajectories []freqtracker.Trajectory) error {
	bw := bufio.NewWriter(w)
	bw.WriteByte('{')
	for i, tr := range trajectories {
		if i > 0 {
			bw.WriteString(", ")
		}
		fmt.Fprintf(bw, "(%d, %s, %s): [", tr.Origin, formatFloat(tr.Position), formatFloat(tr.Effect))
		for j, c := range tr.Counts {
			if j > 0 {
				bw.WriteString(", ")
			}
			bw.WriteString(strconv.FormatUint(uint64(c), 10))
		}
		bw.WriteByte(']')
	}
	bw.WriteString("}\n")
	return bw.Flush()
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

func writeJSON(w io.Writer, trajectories []freqtracker.Trajectory) error {
	if trajectories == nil {
		trajectories = []freqtracker.Trajectory{}
	}
	enc := json.NewEncoder(w)
	return enc.Encode(trajectories)
}

// CSVHeader names the columns of the long-form trajectory table.
var CSVHeader = []string{"origin", "position", "effect", "step", "count"}

// CSVRow formats one trajectory entry; step counts generations from the first
// recorded count.
func CSVRow(origin uint32, position, effect float64, step int, count uint32) []string {
	return []string{
		strconv.FormatUint(uint64(origin), 10),
		strconv.FormatFloat(position, 'g', -1, 64),
		strconv.FormatFloat(effect, 'g', -1, 64),
		strconv.Itoa(step),
		strconv.FormatUint(uint64(count), 10),
	}
}

func writeCSV(w io.Writer, trajectories []freqtracker.Trajectory) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, tr := range trajectories {
		for step, c := range tr.Counts {
			if err := cw.Write(CSVRow(tr.Origin, tr.Position, tr.Effect, step, c)); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
