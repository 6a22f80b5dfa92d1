package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/pipescope/core/internal/plan"
	"github.com/spf13/cobra"
)

func newPlanCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "plan FILE",
		Short: "Print the execution order of the pipeline in FILE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			graph, err := loadGraph(contextOf(cmd), opts, args[0])
			if err != nil {
				return err
			}

			order, err := plan.Validate(graph.Nodes, graph.Edges)
			out := cmd.OutOrStdout()

			for i, id := range order {
				node, _ := graph.NodeByID(id)
				line := fmt.Sprintf("%3d. %s", i+1, id)
				if node.Label != "" && node.Label != id {
					line += " " + color.HiBlackString("(%s)", node.Label)
				}
				fmt.Fprintln(out, line)
			}

			var cycle *plan.CycleError
			if errors.As(err, &cycle) {
				fmt.Fprintln(cmd.ErrOrStderr(), color.YellowString("warning: %v", cycle))
			}
			return nil
		},
	}
}
