package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/joseph-ayodele/scrape-jobs/internal/synchronizer"
)

const previewItems = 5

// RunFunc drives the synchronizer, sending each state on updates.
type RunFunc func(ctx context.Context, updates chan<- synchronizer.Machine) (synchronizer.Machine, error)

type machineMsg synchronizer.Machine

type finishedMsg struct {
	machine synchronizer.Machine
	err     error
}

// WatchModel renders one job from submission to its terminal state.
type WatchModel struct {
	title   string
	run     RunFunc
	ctx     context.Context
	cancel  context.CancelFunc
	updates chan synchronizer.Machine

	spinner spinner.Model
	bar     progress.Model
	machine synchronizer.Machine

	finished bool
	err      error
}

func NewWatchModel(ctx context.Context, title string, run RunFunc) *WatchModel {
	ctx, cancel := context.WithCancel(ctx)
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = warningStyle
	return &WatchModel{
		title:   title,
		run:     run,
		ctx:     ctx,
		cancel:  cancel,
		updates: make(chan synchronizer.Machine),
		spinner: sp,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

// Result is the final machine and the runner's error once the program exits.
func (m *WatchModel) Result() (synchronizer.Machine, error) {
	return m.machine, m.err
}

// Init implements tea.Model.
func (m *WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start(), m.waitForUpdate())
}

func (m *WatchModel) start() tea.Cmd {
	return func() tea.Msg {
		final, err := m.run(m.ctx, m.updates)
		return finishedMsg{machine: final, err: err}
	}
}

func (m *WatchModel) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		select {
		case mm := <-m.updates:
			return machineMsg(mm)
		case <-m.ctx.Done():
			return nil
		}
	}
}

// Update implements tea.Model.
func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			// the job keeps running on the server
			m.cancel()
			return m, tea.Quit
		}
		return m, nil

	case machineMsg:
		m.machine = synchronizer.Machine(msg)
		return m, m.waitForUpdate()

	case finishedMsg:
		m.machine = msg.machine
		m.err = msg.err
		m.finished = true
		m.cancel()
		return m, tea.Quit

	case tea.WindowSizeMsg:
		if w := msg.Width - 4; w > 10 && w < 80 {
			m.bar.Width = w
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *WatchModel) View() string {
	var b strings.Builder
	b.WriteString(renderTitle(m.title))
	b.WriteString("\n")

	mm := m.machine
	switch mm.State {
	case synchronizer.Idle:
		if mm.Error != "" {
			b.WriteString(renderError(mm.Error))
		} else {
			b.WriteString(m.spinner.View() + " Starting...")
		}

	case synchronizer.Submitting:
		b.WriteString(m.spinner.View() + " Submitting job...")

	case synchronizer.AwaitingProgress:
		b.WriteString(renderField("Job", mm.JobID.String()) + "\n")
		b.WriteString(m.bar.ViewAs(float64(mm.Progress)/100) + "\n")
		b.WriteString(m.spinner.View() + " " + orDefault(mm.Message, "Waiting for progress..."))
		if mm.Error != "" {
			b.WriteString("\n" + warningStyle.Render(mm.Error))
		}

	case synchronizer.Completed:
		b.WriteString(renderField("Job", mm.JobID.String()) + "\n")
		b.WriteString(m.bar.ViewAs(1) + "\n")
		b.WriteString(renderSuccess(orDefault(mm.Message, "Completed")))
		if mm.Detail != nil {
			b.WriteString("\n" + renderDivider(40) + "\n")
			b.WriteString(renderItems(mm))
		}

	case synchronizer.Failed:
		b.WriteString(renderField("Job", mm.JobID.String()) + "\n")
		b.WriteString(m.bar.ViewAs(float64(mm.Progress)/100) + "\n")
		b.WriteString(renderError(orDefault(mm.Error, "Job failed")))
	}

	if !m.finished && !mm.State.Terminal() {
		b.WriteString("\n\n" + helpStyle.Render("q: stop watching (the job keeps running)"))
	}
	b.WriteString("\n")
	return b.String()
}

func renderItems(mm synchronizer.Machine) string {
	items := mm.Detail.Items
	var b strings.Builder
	for i, it := range items {
		if i == previewItems {
			b.WriteString(mutedStyle.Render(fmt.Sprintf("... and %d more", len(items)-previewItems)) + "\n")
			break
		}
		title := "(untitled)"
		if it.Title != nil {
			title = *it.Title
		}
		line := fmt.Sprintf("%d. %s", it.ID, title)
		if it.Price != nil {
			line += mutedStyle.Render("  " + *it.Price)
		}
		b.WriteString(line + "\n")
	}
	if len(items) == 0 {
		b.WriteString(mutedStyle.Render("No items found") + "\n")
	}
	return b.String()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
