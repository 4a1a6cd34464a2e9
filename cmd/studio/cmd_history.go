package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/willibrandon/studio/internal/ui/highlight"
)

// newHistoryCmd creates the history subcommand
func newHistoryCmd() *cobra.Command {
	var (
		search     string
		limit      int
		allProject bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show statements studio ran against the project",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, services, err := setup()
			if err != nil {
				return err
			}
			defer teardown(services)

			if services.History == nil {
				return errors.New("execution history is disabled (history.enabled in config)")
			}

			ref := cfg.DefaultProject
			if allProject {
				ref = ""
			}
			entries, err := services.History.Search(cmd.Context(), ref, search, limit)
			if err != nil {
				return err
			}

			return render(entries, func() {
				if len(entries) == 0 {
					fmt.Println(muted.Sprint("No history"))
					return
				}
				for _, e := range entries {
					header := fmt.Sprintf("%s  %s  %s  %dms",
						humanize.Time(e.ExecutedAt), e.ProjectRef, e.QueryKey, e.DurationMs)
					bold.Println(header)
					if e.Error != "" {
						failure.Println("  " + e.Error)
					}
					fmt.Println(highlight.Indent(highlight.SQL(strings.TrimSpace(e.SQL)), "  "))
					fmt.Println()
				}
			})
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "only statements containing this text")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of entries")
	cmd.Flags().BoolVar(&allProject, "all-projects", false, "include every project")
	return cmd
}
