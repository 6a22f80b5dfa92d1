package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/pipescope/core/internal/ctxlog"
	"github.com/pipescope/core/internal/models"
	"github.com/pipescope/core/internal/simulator"
	"github.com/spf13/cobra"
)

func newRunCmd(opts *options) *cobra.Command {
	var (
		stepDelay time.Duration
		stepPause time.Duration
		failAt    string
	)

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Simulate a run of the pipeline in FILE",
		Long: "Simulate a run of the pipeline in FILE, printing every status change.\n" +
			"Press Ctrl-C to stop; the step in progress is reset to idle.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextOf(cmd)

			graph, err := loadGraph(ctx, opts, args[0])
			if err != nil {
				return err
			}

			var result simulator.Notification
			out := cmd.OutOrStdout()
			simOpts := []simulator.Option{
				simulator.WithStepDelay(stepDelay),
				simulator.WithStepPause(stepPause),
				simulator.WithLogger(ctxlog.FromContext(ctx)),
				simulator.WithNotifier(simulator.NotifierFunc(func(_ context.Context, n simulator.Notification) {
					printNotification(out, n)
					if n.Kind.Terminal() {
						result = n
					}
				})),
			}
			if failAt != "" {
				simOpts = append(simOpts, simulator.WithOutcome(simulator.FailAt(failAt)))
			}

			sim := simulator.New(*graph, simOpts...)
			tracker := newStatusTracker(out)
			defer sim.Subscribe(tracker.observe)()

			release := stopOnSignal(sim)
			defer release()

			if err := sim.Run(ctx); err != nil {
				return err
			}
			if result.Kind == simulator.NotificationFailed {
				return fmt.Errorf("run %s failed at %s", result.RunID, result.NodeID)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&stepDelay, "step-delay", opts.cfg.StepDelay, "Simulated duration of each step")
	cmd.Flags().DurationVar(&stepPause, "step-pause", simulator.DefaultStepPause, "Pause between two successful steps")
	cmd.Flags().StringVar(&failAt, "fail", "", "Make the step with this node id fail")
	return cmd
}

// stopOnSignal calls sim.Stop on the first interrupt until release is called.
func stopOnSignal(sim *simulator.Simulator) (release func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			sim.Stop()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

// statusTracker prints the nodes whose status changed since the previous
// snapshot.
type statusTracker struct {
	out  io.Writer
	last map[string]models.Status
}

func newStatusTracker(out io.Writer) *statusTracker {
	return &statusTracker{out: out, last: make(map[string]models.Status)}
}

func (t *statusTracker) observe(g models.Graph) {
	for _, n := range g.Nodes {
		status := n.EffectiveStatus()
		prev, seen := t.last[n.ID]
		t.last[n.ID] = status
		if !seen || prev == status {
			continue
		}
		fmt.Fprintf(t.out, "  %s %s\n", statusBadge(status), n.DisplayName())
	}
}

func statusBadge(s models.Status) string {
	label := fmt.Sprintf("%-10s", s)
	switch s {
	case models.StatusProcessing:
		return color.CyanString("%s", label)
	case models.StatusSuccess:
		return color.GreenString("%s", label)
	case models.StatusFailed:
		return color.RedString("%s", label)
	default:
		return color.HiBlackString("%s", label)
	}
}

func printNotification(out io.Writer, n simulator.Notification) {
	var msg string
	switch n.Kind {
	case simulator.NotificationStarted:
		msg = color.HiBlueString("%s (run %s)", n.Message, n.RunID)
	case simulator.NotificationCompleted:
		msg = color.GreenString("%s", n.Message)
	case simulator.NotificationFailed:
		msg = color.RedString("%s", n.Message)
	default:
		msg = color.YellowString("%s", n.Message)
	}
	fmt.Fprintln(out, msg)
}
