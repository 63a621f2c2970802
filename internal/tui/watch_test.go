package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/scrape-jobs/constants"
	"github.com/joseph-ayodele/scrape-jobs/internal/entity"
	"github.com/joseph-ayodele/scrape-jobs/internal/synchronizer"
)

func noRun(context.Context, chan<- synchronizer.Machine) (synchronizer.Machine, error) {
	return synchronizer.Machine{}, nil
}

func TestWatchModelRendersStates(t *testing.T) {
	m := NewWatchModel(context.Background(), "Scraping: iphone", noRun)
	id := uuid.New()

	_, cmd := m.Update(machineMsg(synchronizer.Machine{State: synchronizer.Submitting}))
	assert.NotNil(t, cmd, "keeps listening for updates")
	assert.Contains(t, m.View(), "Submitting job...")

	m.Update(machineMsg(synchronizer.Machine{State: synchronizer.AwaitingProgress, JobID: id, Progress: 40, Message: "Extracted 2 of 5 items"}))
	view := m.View()
	assert.Contains(t, view, id.String())
	assert.Contains(t, view, "Extracted 2 of 5 items")
	assert.Contains(t, view, "40%")

	title := "iPhone 15 128GB - Midnight"
	detail := entity.Job{ID: id, Items: []entity.ResultItem{{ID: 1, Title: &title}}}
	final := synchronizer.Machine{State: synchronizer.Completed, JobID: id, Status: constants.JobStatusCompleted, Progress: 100, Message: "Successfully extracted 1 items!", Detail: &detail}
	_, cmd = m.Update(finishedMsg{machine: final})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	view = m.View()
	assert.Contains(t, view, "Successfully extracted 1 items!")
	assert.Contains(t, view, "1. iPhone 15 128GB - Midnight")
	assert.NotContains(t, view, "stop watching")

	got, err := m.Result()
	assert.NoError(t, err)
	assert.Equal(t, synchronizer.Completed, got.State)
}

func TestWatchModelFailure(t *testing.T) {
	m := NewWatchModel(context.Background(), "Scraping", noRun)
	final := synchronizer.Machine{State: synchronizer.Failed, Progress: 20, Error: "Error: selector not found"}
	m.Update(finishedMsg{machine: final, err: synchronizer.ErrJobFailed})

	assert.Contains(t, m.View(), "Error: selector not found")
	_, err := m.Result()
	assert.True(t, errors.Is(err, synchronizer.ErrJobFailed))
}

func TestWatchModelQuitCancelsRun(t *testing.T) {
	m := NewWatchModel(context.Background(), "Scraping", noRun)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Error(t, m.ctx.Err())
}

func TestWatchModelRunsRunner(t *testing.T) {
	run := func(ctx context.Context, updates chan<- synchronizer.Machine) (synchronizer.Machine, error) {
		updates <- synchronizer.Machine{State: synchronizer.Submitting}
		return synchronizer.Machine{State: synchronizer.Completed}, nil
	}
	m := NewWatchModel(context.Background(), "Scraping", run)

	msg := m.waitForUpdate()
	done := make(chan tea.Msg, 1)
	go func() { done <- m.start()() }()

	assert.Equal(t, machineMsg(synchronizer.Machine{State: synchronizer.Submitting}), msg())
	fin := (<-done).(finishedMsg)
	assert.Equal(t, synchronizer.Completed, fin.machine.State)
}
