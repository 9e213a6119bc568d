package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/abhisek/coursekit/internal/course"
	"github.com/abhisek/coursekit/internal/gating"
	"github.com/abhisek/coursekit/internal/ui/theme"
)

var validateCmd = &cobra.Command{
	Use:   "validate <course.yaml>...",
	Short: "Check course definitions for schema and gating problems",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		strict, _ := cmd.Flags().GetBool("strict")

		type result struct {
			course *course.Course
			report *gating.Report
			err    error
		}
		results := make([]result, len(args))

		g, _ := errgroup.WithContext(cmd.Context())
		g.SetLimit(4)
		for i, path := range args {
			g.Go(func() error {
				c, err := course.Load(path)
				if err != nil {
					results[i].err = err
					return nil
				}
				results[i] = result{course: c, report: gating.Analyze(c)}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		failed := 0
		for i, path := range args {
			r := results[i]
			if r.err != nil {
				failed++
				fmt.Fprintf(out, "%s %s\n  %s\n", theme.Fatal.Render("FAIL"), path, r.err)
				continue
			}
			bad := !r.report.OK() || (strict && len(r.report.Issues) > 0)
			status := theme.OK.Render("OK  ")
			if bad {
				failed++
				status = theme.Fatal.Render("FAIL")
			}
			fmt.Fprintf(out, "%s %s %s\n", status, path,
				theme.Subtitle.Render(fmt.Sprintf("(%s %s, %d objects)", r.course.Name, r.course.Version, len(r.course.Objects))))
			printIssues(out, r.report)
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d course(s) failed validation", failed, len(args))
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().Bool("strict", false, "Treat warnings as failures")
}
