package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/coursekit/internal/assessment"
	"github.com/abhisek/coursekit/internal/course"
	"github.com/abhisek/coursekit/internal/hierarchy"
)

var conceptsCmd = &cobra.Command{
	Use:   "concepts <course.yaml>",
	Short: "Print the concept hierarchy a course builds",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := course.Load(args[0])
		if err != nil {
			return err
		}

		proxy := assessment.NewProxy(nil)
		res, err := hierarchy.Build(proxy, c.Concepts)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		printTree(out, proxy.GeneratePerformanceAssessment())
		fmt.Fprintf(out, "\n%d concepts, task #%d\n", len(res.ConceptNameToNodeID()), res.TaskID)
		return nil
	},
}
