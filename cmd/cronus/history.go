package main

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"cronus/internal/app"
	"cronus/internal/storage"
	logx "cronus/pkg/logx"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent launches recorded by the daemon",
	Args: func(cmd *cobra.Command, args []string) error {
		if err := cobra.NoArgs(cmd, args); err != nil {
			return usageErr(err)
		}
		return nil
	},
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "number of entries, newest first")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return usageErr(errors.New("--limit must be > 0"))
	}
	sc, enabled, err := app.MapStorage(cfg)
	if err != nil {
		return usageErr(err)
	}
	if !enabled {
		return usageErr(errors.New("history is disabled (storage.driver is none)"))
	}
	st, err := storage.Open(sc, logx.Nop())
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.RecentRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tWHEN\tLINE\tPID\tSTATUS\tCOMMAND")
	for _, e := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			e.Started.Local().Format(humanLayout), humanize.Time(e.Started), e.Line, pidText(e.PID), status(e), e.Command)
	}
	return tw.Flush()
}

func pidText(pid int) string {
	if pid == 0 {
		return "-"
	}
	return strconv.Itoa(pid)
}

func status(e storage.RunEntry) string {
	switch {
	case !e.OK():
		return "failed: " + e.Error
	case e.CatchUp:
		return "catch-up"
	default:
		return "ok"
	}
}
