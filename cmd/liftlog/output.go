package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/hyperengineering/liftlog/internal/types"
)

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

// formatLoad renders weight, reps and sets as "100 kg 5x3". Missing parts are
// left out; an entry with nothing recorded renders as "-".
func formatLoad(e types.Entry) string {
	out := ""
	if e.Weight != nil {
		out = strconv.FormatFloat(*e.Weight, 'f', -1, 64)
		if e.Unit != types.UnitNone {
			out += " " + string(e.Unit)
		}
	}
	if e.Reps != nil {
		sets := 1
		if e.Sets != nil {
			sets = *e.Sets
		}
		if out != "" {
			out += " "
		}
		out += fmt.Sprintf("%dx%d", *e.Reps, sets)
	}
	if out == "" {
		return "-"
	}
	return out
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
