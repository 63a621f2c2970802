package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/joseph-ayodele/scrape-jobs/internal/synchronizer"
	"github.com/joseph-ayodele/scrape-jobs/internal/tui"
)

type runFunc = tui.RunFunc

// follow drives run either through the interactive view or as plain progress
// lines, then reports the final state.
func follow(ctx context.Context, a *appContext, title string, plain bool, run runFunc) error {
	var (
		final synchronizer.Machine
		err   error
	)
	if plain {
		final, err = followPlain(ctx, a.Out, run)
	} else {
		model := tui.NewWatchModel(ctx, title, run)
		if _, perr := tea.NewProgram(model, tea.WithContext(ctx)).Run(); perr != nil && !errors.Is(perr, tea.ErrProgramKilled) {
			return perr
		}
		final, err = model.Result()
		if !final.State.Terminal() && err == nil {
			// the user stopped watching; the job carries on
			if final.JobID != uuid.Nil {
				fmt.Fprintf(a.Out, "Stopped watching job %s\n", final.JobID)
			}
			return nil
		}
	}

	switch {
	case errors.Is(err, synchronizer.ErrJobFailed), errors.Is(err, synchronizer.ErrSubmitRejected):
		// already shown
		return cli.Exit("", exitFailed)
	case errors.Is(err, context.Canceled):
		return nil
	}
	return err
}

func followPlain(ctx context.Context, w io.Writer, run runFunc) (synchronizer.Machine, error) {
	updates := make(chan synchronizer.Machine)
	type result struct {
		m   synchronizer.Machine
		err error
	}
	done := make(chan result, 1)
	go func() {
		m, err := run(ctx, updates)
		done <- result{m, err}
	}()

	var last synchronizer.Machine
	for {
		select {
		case m := <-updates:
			printTransition(w, last, m)
			last = m
		case r := <-done:
			printFinal(w, r.m)
			return r.m, r.err
		}
	}
}

func printTransition(w io.Writer, prev, m synchronizer.Machine) {
	switch m.State {
	case synchronizer.Submitting:
		if prev.State != m.State {
			fmt.Fprintln(w, "Submitting job...")
		}
	case synchronizer.AwaitingProgress:
		if prev.State != m.State {
			fmt.Fprintf(w, "Job %s queued\n", m.JobID)
		}
		if m.Progress != prev.Progress || m.Message != prev.Message {
			fmt.Fprintf(w, "[%3d%%] %s\n", m.Progress, m.Message)
		}
	}
}

func printFinal(w io.Writer, m synchronizer.Machine) {
	switch m.State {
	case synchronizer.Completed:
		fmt.Fprintf(w, "✓ %s\n", m.Message)
		if m.Detail != nil {
			printItems(w, m.Detail.Items)
		}
	case synchronizer.Failed:
		fmt.Fprintf(w, "✗ %s\n", m.Error)
	case synchronizer.Idle:
		if m.Error != "" {
			fmt.Fprintf(w, "✗ %s\n", m.Error)
		}
	}
}
