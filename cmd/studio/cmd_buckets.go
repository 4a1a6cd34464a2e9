package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/willibrandon/studio/internal/buckets"
	"github.com/willibrandon/studio/internal/db/models"
)

// estimateReport is the machine-readable bucket estimate.
type estimateReport struct {
	Project      string               `json:"project" yaml:"project"`
	Estimate     *int64               `json:"estimate" yaml:"estimate"`
	Threshold    int64                `json:"threshold" yaml:"threshold"`
	RunCondition buckets.RunCondition `json:"run_condition" yaml:"run_condition"`
}

// largestReport is the machine-readable scan result.
type largestReport struct {
	Project   string          `json:"project" yaml:"project"`
	Limit     *int64          `json:"limit_bytes,omitempty" yaml:"limit_bytes,omitempty"`
	Buckets   []models.Bucket `json:"buckets" yaml:"buckets"`
	Exceeding []models.Bucket `json:"exceeding,omitempty" yaml:"exceeding,omitempty"`
}

// newBucketsCmd creates the buckets command group
func newBucketsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "buckets",
		Short: "Check storage bucket file size limits",
	}
	cmd.AddCommand(newBucketsEstimateCmd(), newBucketsLargestCmd())
	return cmd
}

func newBucketsEstimateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "estimate",
		Short: "Show the planner's bucket count estimate",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, services, err := setup()
			if err != nil {
				return err
			}
			defer teardown(services)

			project, err := services.Project("")
			if err != nil {
				return err
			}
			q := services.Buckets(project)
			estimate := q.Estimate(cmd.Context())
			report := estimateReport{
				Project:      project.ProjectRef,
				Estimate:     estimate,
				Threshold:    q.Threshold(),
				RunCondition: buckets.ClassifyRunCondition(estimate, q.Threshold()),
			}
			return render(report, func() {
				if report.Estimate == nil {
					fmt.Printf("Estimated buckets: %s\n", muted.Sprint("unknown"))
				} else {
					fmt.Printf("Estimated buckets: %s\n", humanize.Comma(*report.Estimate))
				}
				fmt.Printf("Threshold:         %s\n", humanize.Comma(report.Threshold))
				if report.RunCondition == buckets.RunAuto {
					fmt.Printf("Scan:              %s\n", success.Sprint("runs automatically"))
				} else {
					fmt.Printf("Scan:              %s\n", warning.Sprint("needs confirmation"))
				}
			})
		},
	}
}

func newBucketsLargestCmd() *cobra.Command {
	var (
		yes        bool
		limitBytes string
	)
	cmd := &cobra.Command{
		Use:   "largest",
		Short: "List the buckets with the largest file size limits",
		Long: `List up to ten buckets ordered by file_size_limit, largest first, with
unlimited buckets last. With --limit-bytes the buckets whose own limit is
above that global limit are marked.

When the bucket count is unknown or above the threshold the scan asks for
confirmation; --yes skips the question.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var limit *int64
			if limitBytes != "" {
				v, err := buckets.ParseSizeLimit(limitBytes)
				if err != nil {
					return fmt.Errorf("--limit-bytes: %w", err)
				}
				limit = &v
			}

			_, services, err := setup()
			if err != nil {
				return err
			}
			defer teardown(services)

			project, err := services.Project("")
			if err != nil {
				return err
			}
			q := services.Buckets(project)
			ctx := cmd.Context()

			if !yes && q.RunCondition(ctx) == buckets.RunConfirm {
				ok, err := confirmScan(q.Estimate(ctx))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println("Cancelled")
					return nil
				}
			}

			list, err := q.Run(ctx)
			if err != nil {
				return err
			}
			report := largestReport{Project: project.ProjectRef, Limit: limit, Buckets: list}
			if limit != nil {
				report.Exceeding = buckets.ExceedingLimit(list, *limit)
			}
			return render(report, func() { printBuckets(report) })
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "run the scan without confirmation")
	cmd.Flags().StringVar(&limitBytes, "limit-bytes", "", "global limit to compare against, e.g. 50MB")
	return cmd
}

var errConfirmationRequired = errors.New("the bucket count is unknown or above the threshold; rerun with --yes")

// confirmScan asks on the terminal before an expensive scan.
func confirmScan(estimate *int64) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, errConfirmationRequired
	}
	if estimate != nil {
		warning.Printf("About %s buckets will be scanned. Continue? [y/N] ", humanize.Comma(*estimate))
	} else {
		warning.Print("The number of buckets is unknown. Continue? [y/N] ")
	}
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

func printBuckets(r largestReport) {
	if len(r.Buckets) == 0 {
		fmt.Println(muted.Sprint("No buckets"))
		return
	}
	for _, b := range r.Buckets {
		size := muted.Sprint("unlimited")
		if b.FileSizeLimit != nil {
			size = humanize.IBytes(uint64(*b.FileSizeLimit))
		}
		line := fmt.Sprintf("%-32s %s", b.Name, size)
		if r.Limit != nil && b.Exceeds(*r.Limit) {
			fmt.Println(failure.Sprint(line) + warning.Sprint("  above limit"))
			continue
		}
		fmt.Println(line)
	}
	if r.Limit != nil {
		fmt.Printf("\n%d of %d buckets exceed %s\n", len(r.Exceeding), len(r.Buckets), humanize.IBytes(uint64(*r.Limit)))
	}
}
