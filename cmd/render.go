package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/abhisek/coursekit/internal/assessment"
	"github.com/abhisek/coursekit/internal/gating"
	"github.com/abhisek/coursekit/internal/ui/theme"
)

// printTree writes an indented assessment tree.
func printTree(w io.Writer, pa *assessment.PerformanceAssessment) {
	for _, task := range pa.Tasks {
		printNode(w, task, 0)
	}
}

func printNode(w io.Writer, n assessment.NodeSnapshot, depth int) {
	indent := strings.Repeat("  ", depth)
	name := n.Name
	if n.Kind == assessment.KindTask {
		name = theme.Title.Render(name)
	}
	line := fmt.Sprintf("%s%s %s", indent, name, theme.Level(n.Level).Render(n.Level.String()))
	if n.Confidence != assessment.NoConfidence {
		line += theme.Hint.Render(fmt.Sprintf(" (%.2f)", n.Confidence))
	}
	if n.AuthoritativeResource != "" {
		line += theme.Hint.Render(" [" + n.AuthoritativeResource + "]")
	}
	fmt.Fprintf(w, "%s  %s\n", line, theme.Subtitle.Render(fmt.Sprintf("#%d", n.ID)))
	for _, child := range n.Children {
		printNode(w, child, depth+1)
	}
}

// printIssues writes a gating report, one issue per line.
func printIssues(w io.Writer, r *gating.Report) {
	for _, issue := range r.Issues {
		fmt.Fprintf(w, "  %s %s\n",
			theme.Severity(issue.Severity).Render(fmt.Sprintf("%-7s", issue.Severity)),
			strings.TrimPrefix(issue.String(), "["+issue.Severity.String()+"] "))
	}
}
