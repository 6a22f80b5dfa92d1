package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newGraphCmd(opts *options) *cobra.Command {
	var pretty bool

	cmd := &cobra.Command{
		Use:   "graph FILE",
		Short: "Print the pipeline graph of FILE as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			graph, err := loadGraph(contextOf(cmd), opts, args[0])
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			if pretty {
				encoder.SetIndent("", "  ")
			}
			return encoder.Encode(graph)
		},
	}

	cmd.Flags().BoolVar(&pretty, "pretty", false, "Indent the JSON output")
	return cmd
}
