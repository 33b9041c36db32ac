package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"weekplan/internal/client"
	"weekplan/internal/config"
	"weekplan/internal/geometry"
	"weekplan/internal/model"
)

func addSnapshot(topLevel *cobra.Command) {
	var week string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print one week of the schedule",
		Example: `
weekplan snapshot --week 2025-01-06
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return printWeek(ctx, cmd.OutOrStdout(), path, week)
		},
	}
	cmd.Flags().StringVar(&week, "week", "", "Week to print as YYYY-MM-DD (defaults to the current week)")
	topLevel.AddCommand(cmd)
}

func printWeek(ctx context.Context, w io.Writer, path, week string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	start := model.WeekStart(time.Now().In(loc))
	if week != "" {
		if start, err = model.ParseWeek(week); err != nil {
			return err
		}
	}

	c, err := client.New(cfg.ServerURL, client.Options{Timeout: cfg.RequestTimeout})
	if err != nil {
		return err
	}
	snap, err := c.Fetch(ctx, start)
	if err != nil {
		return err
	}
	writeSnapshot(w, snap)
	return nil
}

var bold = color.New(color.Bold).SprintFunc()

// writeSnapshot renders one row per entry in day-column order.
func writeSnapshot(w io.Writer, snap model.Snapshot) {
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = 40
	tbl.AddRow(bold("Day"), bold("Start"), bold("End"), bold("Title"), bold("Ref"), bold("Color"))
	for _, day := range snap.Grid.DayOrder {
		for _, e := range snap.Column(day) {
			tbl.AddRow(day, geometry.FormatClock(e.StartMinute), geometry.FormatClock(e.EndMinute), e.Title, e.Ref.String(), e.Color)
		}
	}

	_, _ = fmt.Fprintf(w, "%s %s  (%s-%s, %d min slots)\n", bold("Week"), snap.Week(),
		geometry.FormatClock(snap.Grid.DayStart), geometry.FormatClock(snap.Grid.DayEnd), snap.Grid.SlotMinutes)
	_, _ = fmt.Fprintln(w, tbl)
}
