package main

import (
	"fmt"

	"facette.io/natsort"
	"github.com/spf13/cobra"
)

func (a *app) statesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "states FILE",
		Short: "List the states a definition references",
		Long: `Lists every state in natural order. The initial state is marked with '*',
ignore-tagged states with '(terminal)' and validation-exempt states with '(exempt)'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, program, err := compile(args[0], nil)
			if err != nil {
				return err
			}

			cfg := program.Config()

			states := cfg.States()
			natsort.Sort(states)

			out := cmd.OutOrStdout()

			for _, state := range states {
				marker := " "
				if state == cfg.InitialState() {
					marker = "*"
				}

				suffix := ""

				switch {
				case cfg.IsIgnored(state):
					suffix = " (terminal)"
				case cfg.IsExempt(state):
					suffix = " (exempt)"
				}

				fmt.Fprintf(out, "%s %s%s\n", marker, state, suffix)
			}

			return nil
		},
	}
}
