package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Check definitions for graph errors",
		Long: `Compiles each definition and runs every validator: initial state, dead-end
targets, unreachable sources, force states and, in verbose mode, descriptions.
All violations are reported, not just the first.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var errs []error

			for _, path := range args {
				if err := a.runValidate(cmd, path); err != nil {
					errs = append(errs, err)
				}
			}

			return errors.Join(errs...)
		},
	}
}

func (a *app) runValidate(cmd *cobra.Command, path string) error {
	_, program, err := compile(path, nil)
	if err != nil {
		return err
	}

	m, err := program.Build()
	if err != nil {
		return err
	}

	cfg := m.Config()

	fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (%d rules, %d states)\n", path, len(cfg.Rules()), len(m.States()))

	return nil
}
