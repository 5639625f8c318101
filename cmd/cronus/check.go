package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"cronus/internal/crontab"
)

var checkCmd = &cobra.Command{
	Use:   "check <crontab>",
	Short: "Validate a crontab and show upcoming runs",
	Long: `Parses the crontab without running anything. Every invalid line is
reported; every valid task is listed with its last call, whether a run
was missed, and its next occurrences. Exits 2 when any line is invalid.`,
	Args: exactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().IntP("next", "n", 3, "occurrences to show per task")
	checkCmd.Flags().String("from", "", `reference time, RFC 3339 or "2006-01-02 15:04:05" (default now)`)
	rootCmd.AddCommand(checkCmd)
}

// fixedClock pins task creation to the reference time.
type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

const humanLayout = "2006-01-02 15:04:05"

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return usageErr(err)
	}
	next, _ := cmd.Flags().GetInt("next")
	if next < 0 {
		return usageErr(fmt.Errorf("--next must be >= 0"))
	}
	fromRaw, _ := cmd.Flags().GetString("from")
	from, err := parseFrom(fromRaw, loc)
	if err != nil {
		return usageErr(err)
	}

	b, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	lines, _, _ := crontab.SplitLines(string(b))

	tasks, errs := crontab.ParseLines(lines, crontab.Env{Clock: fixedClock(from), Location: loc})
	out := cmd.OutOrStdout()
	printCheck(out, args[0], from, tasks, errs, next)

	for _, le := range errs {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s:%d: %v\n", args[0], le.Line, le.Err)
	}
	if len(errs) > 0 {
		return &exitError{code: 2}
	}
	return nil
}

func parseFrom(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Now().In(loc), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.In(loc), nil
	}
	t, err := time.ParseInLocation(humanLayout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("--from: cannot parse %q", raw)
	}
	return t, nil
}

func printCheck(w io.Writer, name string, from time.Time, tasks map[int]*crontab.Task, errs []*crontab.LineError, next int) {
	order := make([]int, 0, len(tasks))
	for line := range tasks {
		order = append(order, line)
	}
	sort.Ints(order)

	fmt.Fprintf(w, "%s: %d tasks, %d invalid lines\n", name, len(tasks), len(errs))
	for _, line := range order {
		t := tasks[line]
		fmt.Fprintf(w, "\n%d: %s\n", line+1, t.Source())
		if lc, ok := t.LastCall(); ok {
			fmt.Fprintf(w, "  last call: %s (%s)\n", lc.Time.Format(humanLayout), humanize.RelTime(lc.Time, from, "ago", "from now"))
		} else {
			fmt.Fprintln(w, "  last call: never")
		}
		if skipped, err := t.Skipped(from); err == nil && skipped {
			fmt.Fprintln(w, "  missed:    yes, runs once on start")
		}
		for i, at := range nextCalls(t, from, next) {
			label := "  next:     "
			if i > 0 {
				label = "            "
			}
			fmt.Fprintf(w, "%s %s (%s)\n", label, at.Format(humanLayout), humanize.RelTime(at, from, "ago", "from now"))
		}
	}
}

// nextCalls collects the first n occurrences after from. The search
// window grows geometrically so dense and sparse schedules both stay cheap.
func nextCalls(t *crontab.Task, from time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	const maxSpan = 4 * 366 * 24 * time.Hour
	var (
		out   []time.Time
		lo    = from
		span  = time.Minute
		limit = from.AddDate(30, 0, 0)
	)
	for len(out) < n && lo.Before(limit) {
		hi := lo.Add(span)
		out = append(out, t.Calls(lo, hi)...)
		lo = hi
		if span < maxSpan {
			span *= 8
		}
	}
	if len(out) > n {
		out = out[:n]
	}
	return out
}
