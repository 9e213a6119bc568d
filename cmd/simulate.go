package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/spf13/cobra"

	"github.com/abhisek/coursekit/internal/course"
	"github.com/abhisek/coursekit/internal/progress"
	"github.com/abhisek/coursekit/internal/session"
	"github.com/abhisek/coursekit/internal/ui/components"
	"github.com/abhisek/coursekit/internal/ui/theme"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <course.yaml>",
	Short: "Run a scripted learner through a course",
	Long: `Run a learner through a course from start to finish.

Each object the learner reaches is printed with the current progress. When a
learner script is given, its responses are applied as the named objects are
reached: survey and recall scores, conversation assessments and LTI grades.
Snapshots, assessment changes and progress reports are written to the
database unless --no-store is set.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer log.Sync()

		c, err := course.Load(args[0])
		if err != nil {
			return err
		}

		var script *learnerScript
		if path, _ := cmd.Flags().GetString("script"); path != "" {
			if script, err = loadScript(path); err != nil {
				return err
			}
		}

		seed, _ := cmd.Flags().GetUint64("seed")
		if seed == 0 && script != nil {
			seed = script.Seed
		}
		var rng *rand.Rand
		if seed != 0 {
			rng = rand.New(rand.NewPCG(seed, seed))
		}

		opts := session.Options{Config: cfg.Session, Log: log, Rand: rng}
		if noStore, _ := cmd.Flags().GetBool("no-store"); !noStore {
			st, err := openStore(cmd, cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			opts.Sink = session.NewStoreSink(st, cfg.Store.SnapshotKeep)
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		s, err := session.New(ctx, c, opts)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %s\n\n", theme.Title.Render(c.Name), theme.Subtitle.Render("session "+s.ID))

		if err := runLearner(ctx, out, s, script); err != nil {
			_ = s.Close(ctx)
			return err
		}
		if err := s.Close(ctx); err != nil {
			return err
		}

		cur, maximum := s.Progress().Counts()
		fmt.Fprintf(out, "\n%s\n\n", components.NewProgressBar("Complete", cur, maximum, 60).View())
		printTree(out, s.Latest())
		return nil
	},
}

func runLearner(ctx context.Context, out io.Writer, s *session.Session, script *learnerScript) error {
	for {
		obj, err := s.Next(ctx)
		if errors.Is(err, progress.ErrNoMoreObjects) {
			return nil
		}
		if err != nil {
			return err
		}

		cur, maximum := s.Progress().Counts()
		fmt.Fprintf(out, "%s %s\n", components.NewProgressBar("", cur, maximum, 30).View(),
			theme.Body.Render(obj.Name)+theme.Hint.Render(" "+string(obj.Kind)))

		step, ok := script.next(obj.Name)
		if !ok {
			continue
		}
		if err := applyStep(ctx, out, s, obj, step); err != nil {
			return fmt.Errorf("%s: %w", obj.Name, err)
		}
	}
}

func applyStep(ctx context.Context, out io.Writer, s *session.Session, obj course.Object, step scriptStep) error {
	if step.Survey != nil {
		if obj.Survey == nil {
			return fmt.Errorf("survey response given for a %s object", obj.Kind)
		}
		if _, err := s.ResolveSurvey(ctx, *step.Survey, obj.Survey.Thresholds); err != nil {
			return err
		}
		fmt.Fprintln(out, theme.Hint.Render("    survey scored"))
	}
	if step.Recall != nil {
		_, inserted, err := s.ResolveRecall(ctx, obj.Courseflow, *step.Recall)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, theme.Hint.Render(fmt.Sprintf("    recall scored, %d remediation item(s) added", inserted)))
	}
	if len(step.Conversation) > 0 {
		if err := s.SubmitConversation(ctx, step.Conversation); err != nil {
			return err
		}
	}
	if step.Grade != nil {
		if err := s.SubmitGrade(ctx, *step.Grade); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	simulateCmd.Flags().String("script", "", "Learner script (YAML) with responses per object")
	simulateCmd.Flags().Uint64("seed", 0, "Seed for random and custom-percent branch selection")
	simulateCmd.Flags().Bool("no-store", false, "Do not write snapshots and events to the database")
}
