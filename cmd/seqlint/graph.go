package main

import (
	"fmt"

	"github.com/amp-labs/sequence/statemachine/visualizer"
	"github.com/spf13/cobra"
)

func (a *app) graphCmd() *cobra.Command {
	var (
		direction      string
		highlight      []string
		noDescriptions bool
		noActions      bool
		theme          string
	)

	cmd := &cobra.Command{
		Use:   "graph FILE",
		Short: "Print a definition as a Mermaid state diagram",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := visualizer.DefaultOptions().
				WithDirection(direction).
				WithHighlightPath(highlight).
				WithShowDescriptions(!noDescriptions).
				WithShowActions(!noActions).
				WithTheme(theme)

			out, err := visualizer.GenerateMermaidFromFile(args[0], opts)
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), out)

			return nil
		},
	}

	cmd.Flags().StringVarP(&direction, "direction", "d", a.cfg.Direction, "diagram direction: TB, BT, LR or RL")
	cmd.Flags().StringSliceVar(&highlight, "highlight", nil, "states to highlight")
	cmd.Flags().BoolVar(&noDescriptions, "no-descriptions", false, "omit rule descriptions from edges")
	cmd.Flags().BoolVar(&noActions, "no-actions", false, "omit state action notes")
	cmd.Flags().StringVar(&theme, "theme", "default", "Mermaid theme")

	return cmd
}
