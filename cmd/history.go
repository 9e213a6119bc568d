package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/coursekit/internal/store"
	"github.com/abhisek/coursekit/internal/ui/theme"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded sessions, assessment changes and progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, err := openStore(cmd, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		sessionID, _ := cmd.Flags().GetString("session")
		limit, _ := cmd.Flags().GetInt("limit")
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		events := st.EventRepo()

		if sessionID == "" {
			sessions, err := events.QuerySessions(ctx, store.QueryOpts{Limit: limit})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%6s  %-20s  %-6s  %-36s  %s\n", "Seq", "Time", "Action", "Session", "Course")
			fmt.Fprintln(out, strings.Repeat("─", 100))
			for _, e := range sessions {
				fmt.Fprintf(out, "%6d  %-20s  %-6s  %-36s  %s %s\n",
					e.Sequence, e.Timestamp.Local().Format("2006-01-02 15:04:05"),
					e.Action, e.SessionID, e.CourseName, e.CourseVersion)
			}
			fmt.Fprintf(out, "\n%d event(s)\n", len(sessions))
			return nil
		}

		opts := store.QueryOpts{SessionID: sessionID, Limit: limit}
		changes, err := events.QueryChanges(ctx, opts)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, theme.Title.Render("Assessment changes"))
		for _, ch := range changes {
			fmt.Fprintf(out, "%6d  %-30s  %-20s -> %-20s  %s\n",
				ch.Sequence, ch.NodeName, ch.From, ch.To, theme.Hint.Render(ch.Source))
		}

		reports, err := events.QueryProgress(ctx, opts)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "\n"+theme.Title.Render("Progress"))
		for _, r := range reports {
			final := ""
			if r.Final {
				final = theme.OK.Render(" final")
			}
			fmt.Fprintf(out, "%6d  %d/%d  %3d%%  %s%s\n", r.Sequence, r.Current, r.Max, r.Percent, r.State, final)
		}

		snap, err := st.SnapshotRepo().Latest(ctx, sessionID)
		if err != nil {
			return err
		}
		if snap != nil {
			fmt.Fprintf(out, "\n%s %s\n", theme.Title.Render("Latest assessment"),
				theme.Subtitle.Render(fmt.Sprintf("generation %d", snap.Generation)))
			printTree(out, snap.Data)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().String("session", "", "Show details for one session id")
	historyCmd.Flags().Int("limit", 50, "Maximum number of events to show (0 = all)")
}
