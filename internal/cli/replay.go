package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/patientsim/internal/classifier"
	"github.com/ppiankov/patientsim/internal/worker"
)

var (
	replayConcurrency int
	replayTimeout     time.Duration
	replayOffline     bool
	replayQuiet       bool
)

// replayCmd represents the replay command
var replayCmd = &cobra.Command{
	Use:   "replay <script|dir>...",
	Short: "Replay scripted interviews and check the replies",
	Long: `Replay runs YAML interview scripts through the full turn pipeline,
one conversation per script, several scripts at a time:
- Turns that pin an intent (and entities) skip the classifier
- Other turns go to the configured classifier, unless --offline is set
- A turn with "expect" fails when the reply differs

Conversations use an in-memory store regardless of store.driver.

Example:
  patientsim replay testdata/scripts
  patientsim replay chest-pain.yaml --offline --concurrency 8`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().IntVar(&replayConcurrency, "concurrency", 0, "number of scripts replayed at once (overrides replay.concurrency)")
	replayCmd.Flags().DurationVar(&replayTimeout, "timeout", 5*time.Minute, "total timeout for the replay")
	replayCmd.Flags().BoolVar(&replayOffline, "offline", false, "never call the classifier; unpinned turns fail")
	replayCmd.Flags().BoolVarP(&replayQuiet, "quiet", "q", false, "only print failures and the summary")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if replayConcurrency > 0 {
		cfg.Replay.Concurrency = replayConcurrency
	}
	cfg.Store.Driver = "memory"

	scripts, err := worker.LoadScripts(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), replayTimeout)
	defer cancel()

	predictions := worker.Predictions(scripts...)
	wrap := func(next classifier.Classifier) classifier.Classifier {
		if replayOffline {
			next = nil
		}
		return classifier.NewScripted(predictions, next)
	}
	a, err := buildApp(ctx, cfg, wrap)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Fprintf(os.Stderr, "Replaying %d scripts with %d workers\n\n", len(scripts), cfg.Replay.Concurrency)

	results := worker.NewReplayer(a.pipeline, cfg.Replay.Concurrency).Run(ctx, scripts)

	out := cmd.OutOrStdout()
	failed := 0
	for _, res := range results {
		if res.Passed() {
			fmt.Fprintf(out, "✓ %s\n", res.Script)
		} else {
			failed++
			fmt.Fprintf(out, "✗ %s\n", res.Script)
		}
		if res.Error != nil {
			fmt.Fprintf(out, "    error: %v\n", res.Error)
			continue
		}
		if !replayQuiet {
			fmt.Fprintf(out, "    %s\n", res.Intro)
		}
		for _, t := range res.Turns {
			if replayQuiet && t.Matched() {
				continue
			}
			fmt.Fprintf(out, "    > %s\n", t.Say)
			switch {
			case t.Error != nil:
				fmt.Fprintf(out, "    ! %v\n", t.Error)
			case !t.Matched():
				fmt.Fprintf(out, "    < %s\n    expected: %s\n", t.Reply, t.Expect)
			default:
				fmt.Fprintf(out, "    < %s\n", t.Reply)
			}
		}
	}

	fmt.Fprintf(os.Stderr, "\n%d scripts, %d passed, %d failed\n", len(results), len(results)-failed, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d scripts failed", failed, len(results))
	}
	return nil
}
