package offramp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aretw0/offramp/pkg/domain"
	"github.com/aretw0/offramp/pkg/session"
)

// ContentRenderer transforms step content before it is written. The CLI
// installs a markdown-to-ANSI renderer here; tests and headless runs leave it
// nil.
type ContentRenderer func(string) (string, error)

// Walkthrough drives a session through the flow using provided IO. It backs
// the interactive CLI and is equally usable from tests with byte buffers.
type Walkthrough struct {
	Input    io.Reader
	Output   io.Writer
	Headless bool
	Renderer ContentRenderer
}

// NewWalkthrough creates a Walkthrough. The caller must set Input and Output.
func NewWalkthrough() *Walkthrough {
	return &Walkthrough{}
}

// Run executes the interaction loop until the flow completes or input ends.
func (w *Walkthrough) Run(ctx context.Context, s *session.Session) error {
	if w.Input == nil {
		return fmt.Errorf("input reader must be set (use os.Stdin)")
	}
	if w.Output == nil {
		return fmt.Errorf("output writer must be set (use os.Stdout)")
	}
	reader := bufio.NewReader(w.Input)

	for {
		step := s.Current()
		if step == nil {
			return fmt.Errorf("session is parked on no step")
		}

		w.printStep(s, step)

		if s.Completed() {
			return nil
		}

		if err := w.collectAnswers(reader, s, step); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		btn, err := w.pickButton(reader, step)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if _, err := s.Advance(ctx, btn.ID); err != nil {
			var agg *domain.AggregateError
			if errors.As(err, &agg) {
				for _, e := range agg.Errors {
					fmt.Fprintf(w.Output, "  ! %s\n", e.Error())
				}
				continue
			}
			return err
		}

		if s.Completed() {
			if !w.Headless {
				fmt.Fprintln(w.Output, "Cancellation flow finished.")
			}
			return nil
		}
	}
}

func (w *Walkthrough) printStep(s *session.Session, step *domain.Step) {
	var b strings.Builder
	p := s.Progress()
	fmt.Fprintf(&b, "# %s\n\n", step.Heading)
	if step.SubHeading != "" {
		fmt.Fprintf(&b, "**%s**\n\n", step.SubHeading)
	}
	if step.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", step.Description)
	}
	if step.Note != "" {
		fmt.Fprintf(&b, "_%s_\n\n", step.Note)
	}
	if !step.Terminal() {
		fmt.Fprintf(&b, "Step %d of %d\n", p.Position, p.Total)
	}

	out := b.String()
	if w.Renderer != nil {
		if rendered, err := w.Renderer(out); err == nil {
			out = rendered
		}
	}
	fmt.Fprintln(w.Output, strings.TrimSpace(out))
}

// collectAnswers prompts for each visible question. An empty line leaves a
// question unanswered; validation decides later whether that passes.
func (w *Walkthrough) collectAnswers(reader *bufio.Reader, s *session.Session, step *domain.Step) error {
	for _, q := range step.Questions {
		if q.Type == domain.QuestionInfo {
			continue
		}
		answer, err := w.ask(reader, questionLabel(&q))
		if err != nil {
			return err
		}
		if answer == "" {
			continue
		}
		if err := s.SetAnswer(q.ID, answer); err != nil {
			return err
		}

		if fu := q.FollowUpFor(answer); fu != nil {
			nested, err := w.ask(reader, fu.Prompt)
			if err != nil {
				return err
			}
			if nested != "" {
				if err := s.SetAnswer(domain.CompositeKey(q.ID, answer), nested); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (w *Walkthrough) ask(reader *bufio.Reader, prompt string) (string, error) {
	fmt.Fprintf(w.Output, "%s\n> ", prompt)
	text, err := reader.ReadString('\n')
	if err != nil {
		if err == io.EOF && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text), nil
		}
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// pickButton lists the step's buttons and reads a selection by number or id.
func (w *Walkthrough) pickButton(reader *bufio.Reader, step *domain.Step) (*domain.Button, error) {
	buttons := make([]*domain.Button, 0, len(step.Buttons)+1)
	if step.OfferButton != nil {
		buttons = append(buttons, step.OfferButton)
	}
	for i := range step.Buttons {
		buttons = append(buttons, &step.Buttons[i])
	}

	for i, b := range buttons {
		fmt.Fprintf(w.Output, "  [%d] %s\n", i+1, b.Label)
	}
	for {
		choice, err := w.askLine(reader)
		if err != nil {
			return nil, err
		}
		if n, err := strconv.Atoi(choice); err == nil && n >= 1 && n <= len(buttons) {
			return buttons[n-1], nil
		}
		for _, b := range buttons {
			if b.ID == choice {
				return b, nil
			}
		}
		fmt.Fprintf(w.Output, "  ! pick 1-%d\n", len(buttons))
	}
}

func (w *Walkthrough) askLine(reader *bufio.Reader) (string, error) {
	fmt.Fprint(w.Output, "> ")
	text, err := reader.ReadString('\n')
	if err != nil {
		if err == io.EOF && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text), nil
		}
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func questionLabel(q *domain.Question) string {
	if len(q.Options) == 0 {
		return q.Prompt
	}
	values := make([]string, len(q.Options))
	for i, opt := range q.Options {
		values[i] = opt.Value
	}
	return fmt.Sprintf("%s (%s)", q.Prompt, strings.Join(values, ", "))
}
