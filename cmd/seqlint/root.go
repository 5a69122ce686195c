package main

import (
	"fmt"

	"github.com/amp-labs/sequence/cli"
	"github.com/amp-labs/sequence/statemachine/definition"
	"github.com/spf13/cobra"
)

type app struct {
	cfg      Config
	prompter *cli.Prompter
}

func newRootCmd(cfg Config) *cobra.Command {
	a := &app{
		cfg:      cfg,
		prompter: cli.NewPrompter(),
	}

	root := &cobra.Command{
		Use:   "seqlint",
		Short: "seqlint checks and runs tick-driven state machine definitions",
		Long: `seqlint loads YAML state machine definitions, validates their rule graph,
draws them as Mermaid diagrams and simulates them tick by tick.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		a.validateCmd(),
		a.graphCmd(),
		a.statesCmd(),
		a.simulateCmd(),
	)

	return root
}

// compile loads and compiles a definition file.
func compile(path string, inputs *definition.Inputs, opts ...definition.Option) (*definition.File, *definition.Program, error) {
	file, err := definition.Load(path)
	if err != nil {
		return nil, nil, err
	}

	program, err := file.Compile(inputs, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}

	return file, program, nil
}
