package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
)

var promptStyle = headerStyle

// terminal is the operator at the rig, prompted through huh forms.
type terminal struct {
	in  io.Reader
	out io.Writer
}

func newTerminal(in io.Reader, out io.Writer) *terminal {
	return &terminal{in: in, out: out}
}

func (t *terminal) run(ctx context.Context, form *huh.Form) error {
	err := form.
		WithProgramOptions(tea.WithInput(t.in), tea.WithOutput(t.out)).
		RunWithContext(ctx)
	if errors.Is(err, huh.ErrUserAborted) {
		return fmt.Errorf("operator aborted: %w", context.Canceled)
	}
	return err
}

// Acknowledge shows prompt and waits for the operator to continue.
func (t *terminal) Acknowledge(ctx context.Context, prompt string) error {
	fmt.Fprintln(t.out, promptStyle.Render(prompt))

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("").
				Affirmative("Continue").
				Negative("").
				Value(new(bool)),
		),
	)
	return t.run(ctx, form)
}

// AskFloat asks the operator to type a number.
func (t *terminal) AskFloat(ctx context.Context, prompt string) (float64, error) {
	var text string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(prompt).
				Value(&text).
				Validate(func(s string) error {
					_, err := parseReading(s)
					return err
				}),
		),
	)
	if err := t.run(ctx, form); err != nil {
		return 0, err
	}
	return parseReading(text)
}

func parseReading(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, errors.New("enter a number in millimetres")
	}
	return v, nil
}
