// Package console is the interactive terminal front-end. It drives a local
// session directly, rendering the same approval-resume flow the gateway
// exposes over HTTP.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/briefgate/briefgate/internal/briefing"
	"github.com/briefgate/briefgate/internal/session"
	"github.com/charmbracelet/huh"
)

// Console runs the interactive loop against one session.
type Console struct {
	// Session is the conversation to drive. Required.
	Session *session.Session

	// Welcome is shown before the first prompt.
	Welcome string

	// Out receives rendered output. Defaults to os.Stdout.
	Out io.Writer

	// Logger receives diagnostics. Defaults to slog.Default.
	Logger *slog.Logger

	// runForm is swappable for tests.
	runForm func(ctx context.Context, form *huh.Form) error
}

// Run drives the conversation until the user quits or ctx is canceled.
func (c *Console) Run(ctx context.Context) error {
	if c.Out == nil {
		c.Out = os.Stdout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.runForm == nil {
		c.runForm = func(ctx context.Context, form *huh.Form) error {
			return form.RunWithContext(ctx)
		}
	}

	if c.Session.Welcome() {
		if err := c.showWelcome(ctx); err != nil {
			return err
		}
	}

	if err := c.login(ctx); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if c.Session.AwaitingApproval() {
			if err := c.reviewBatch(ctx); err != nil {
				return err
			}
			continue
		}

		prompt, err := c.readPrompt(ctx)
		if err != nil {
			return err
		}
		if prompt == "" {
			return nil
		}

		if _, err := c.Session.SubmitPrompt(ctx, prompt); err != nil {
			if isFatal(err) {
				return err
			}
			fmt.Fprintf(c.Out, "\nError: %v\n\n", err)
			continue
		}

		c.printLatestReply()
	}
}

func (c *Console) showWelcome(ctx context.Context) error {
	fmt.Fprintln(c.Out, c.Welcome)

	var start bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title("Let's get started!").
			Affirmative("Start").
			Negative("Quit").
			Value(&start),
	))
	if err := c.runForm(ctx, form); err != nil {
		return err
	}
	if !start {
		return errors.New("console: aborted at welcome screen")
	}
	c.Session.DismissWelcome()
	return nil
}

func (c *Console) login(ctx context.Context) error {
	var reviewer string
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Reviewer name").
			Description("Recorded with each approval; leave empty to stay anonymous.").
			Value(&reviewer),
	))
	if err := c.runForm(ctx, form); err != nil {
		return err
	}
	if reviewer = strings.TrimSpace(reviewer); reviewer != "" {
		c.Session.Login(reviewer)
	}
	return nil
}

func (c *Console) readPrompt(ctx context.Context) (string, error) {
	var prompt string
	form := huh.NewForm(huh.NewGroup(
		huh.NewText().
			Title("Your message").
			Description("Leave empty to quit.").
			Value(&prompt),
	))
	if err := c.runForm(ctx, form); err != nil {
		return "", err
	}
	return strings.TrimSpace(prompt), nil
}

// reviewBatch renders the pending items and collects one decision batch.
func (c *Console) reviewBatch(ctx context.Context) error {
	pending := c.Session.PendingApprovals()
	actionable := make([]briefing.PendingItem, 0, len(pending))
	for _, p := range pending {
		if p.Item.Actionable() {
			actionable = append(actionable, p)
		} else if p.Item.Displayable() {
			fmt.Fprintln(c.Out, DescribeItem(p.Item))
		}
	}
	if len(actionable) == 0 {
		// Status-only batches are resolved inside the session; nothing to ask.
		return nil
	}

	fmt.Fprintln(c.Out, "\nWould you like to review and approve the pending requests to proceed?")

	approved := make([]bool, len(actionable))
	notes := make([]string, len(actionable))
	fields := make([]huh.Field, 0, 2*len(actionable)+1)
	for i, p := range actionable {
		fields = append(fields,
			huh.NewConfirm().
				Title(DescribeItem(p.Item)).
				Affirmative("Approve").
				Negative("Skip").
				Value(&approved[i]),
			huh.NewInput().
				Title("Additional metadata (optional):").
				Value(&notes[i]),
		)
	}

	var action string
	fields = append(fields, huh.NewSelect[string]().
		Title("Submit decisions").
		Options(
			huh.NewOption("Send approvals", "approve"),
			huh.NewOption("Disapprove and stop", "disapprove"),
		).
		Value(&action))

	if err := c.runForm(ctx, huh.NewForm(huh.NewGroup(fields...))); err != nil {
		return err
	}

	if action == "disapprove" {
		if _, err := c.Session.Disapprove(); err != nil {
			return err
		}
		c.printLatestReply()
		return nil
	}

	decisions := buildDecisions(actionable, approved, notes)
	if _, err := c.Session.SubmitDecisions(ctx, decisions); err != nil {
		if isFatal(err) {
			return err
		}
		fmt.Fprintf(c.Out, "\nError: %v\n\n", err)
		return nil
	}

	if !c.Session.AwaitingApproval() {
		c.printLatestReply()
	}
	return nil
}

func (c *Console) printLatestReply() {
	transcript := c.Session.Transcript()
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role == briefing.RoleAssistant {
			fmt.Fprintf(c.Out, "\n%s\n\n", transcript[i].Text())
			return
		}
	}
}

func isFatal(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
