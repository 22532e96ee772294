package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"icsday/internal/app"
	"icsday/internal/config"
	"icsday/internal/daykey"
	"icsday/internal/render"
)

var (
	flagDate        string
	flagDays        int
	flagOngoing     bool
	flagTransparent bool
	flagNoColor     bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Resolve and print occurrences for one or more days",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfigPath)
		if err != nil {
			return err
		}

		a := app.New(cfg)

		var from daykey.Day
		if flagDate != "" {
			from, err = daykey.Parse(flagDate)
			if err != nil {
				return err
			}
		} else {
			from = daykey.FromTime(time.Now().In(a.Location()))
		}
		if flagDays < 1 {
			flagDays = 1
		}
		days := daykey.Sequence(from, flagDays)

		opts := a.Options()
		if cmd.Flags().Changed("ongoing") {
			opts.IncludeOngoing = flagOngoing
		}
		if cmd.Flags().Changed("transparent") {
			opts.IncludeTransparent = flagTransparent
		}

		result := a.ResolveDays(cmd.Context(), days, opts)
		sort.SliceStable(result.Occurrences, func(i, j int) bool {
			return result.Occurrences[i].Start.Before(result.Occurrences[j].Start)
		})

		fmt.Print(render.DayView(days, result.Occurrences, render.Config{
			Highlight: cfg.Highlight,
			Color:     !flagNoColor,
		}))

		for _, warn := range result.Warnings {
			msg := warn.Message
			if warn.Calendar != "" {
				msg = warn.Calendar + ": " + msg
			}
			fmt.Fprintln(os.Stderr, "warning: "+msg)
		}
		return nil
	},
}

func init() {
	showCmd.Flags().StringVar(&flagDate, "date", "", "First day to show (YYYY-MM-DD, default today)")
	showCmd.Flags().IntVar(&flagDays, "days", 1, "Number of consecutive days to show")
	showCmd.Flags().BoolVar(&flagOngoing, "ongoing", false, "Include continuation rows for multi-day events")
	showCmd.Flags().BoolVar(&flagTransparent, "transparent", false, "Include events marked as available/free")
	showCmd.Flags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
}
