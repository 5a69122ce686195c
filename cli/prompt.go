// Package cli holds the interactive prompts used by the seqlint simulator.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
)

var (
	ErrInvalidAssignment = errors.New("expected key=value")
	errEmptyInput        = errors.New("you must enter something")
)

// Prompter asks questions on a terminal.
type Prompter struct {
	Stdin  io.ReadCloser
	Stdout io.WriteCloser
}

// NewPrompter creates a prompter on the process terminal.
func NewPrompter() *Prompter {
	return &Prompter{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
	}
}

func (p *Prompter) Confirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
		Stdin:     p.Stdin,
		Stdout:    p.Stdout,
	}

	_, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

func (p *Prompter) String(label string) (string, error) {
	prompt := promptui.Prompt{
		Label: label,
		Validate: func(s string) error {
			if len(s) == 0 {
				return errEmptyInput
			}

			return nil
		},
		Stdin:  p.Stdin,
		Stdout: p.Stdout,
	}

	return prompt.Run()
}

// Assignment asks for a key=value pair. An empty answer returns ok=false.
func (p *Prompter) Assignment(label string) (key, value string, ok bool, err error) {
	prompt := promptui.Prompt{
		Label: label,
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return nil
			}

			_, _, err := ParseAssignment(s)

			return err
		},
		Stdin:  p.Stdin,
		Stdout: p.Stdout,
	}

	txt, err := prompt.Run()
	if err != nil {
		return "", "", false, err
	}

	if strings.TrimSpace(txt) == "" {
		return "", "", false, nil
	}

	key, value, err = ParseAssignment(txt)
	if err != nil {
		return "", "", false, err
	}

	return key, value, true, nil
}

// Select asks the user to pick one of choices.
func (p *Prompter) Select(label string, choices ...string) (string, error) {
	sel := &promptui.Select{
		Label: label,
		Items: choices,
		Searcher: func(input string, index int) bool {
			return input != "" && strings.HasPrefix(choices[index], input)
		},
		Stdin:  p.Stdin,
		Stdout: p.Stdout,
	}

	_, value, err := sel.Run()
	if err != nil {
		return "", err
	}

	return value, nil
}

// ParseAssignment splits "key=value". Surrounding whitespace is trimmed and the
// key must not be empty.
func ParseAssignment(s string) (string, string, error) {
	key, value, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)

	if !ok || key == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidAssignment, s)
	}

	return key, strings.TrimSpace(value), nil
}
