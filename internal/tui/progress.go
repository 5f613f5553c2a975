// Package tui renders split progress as a bubbletea step list.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"asmsplit/internal/splitter"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			PaddingBottom(1)

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// StageMsg tells the model a stage has started.
type StageMsg struct {
	Stage splitter.Stage
}

// DoneMsg ends the run.
type DoneMsg struct {
	Report *splitter.Report
	Err    error
}

type Model struct {
	title       string
	stages      []splitter.Stage
	current     int
	spinner     spinner.Model
	done        bool
	interrupted bool
	err         error
}

// NewModel lists the stages expected for a run.
func NewModel(title string, verify bool) Model {
	stages := []splitter.Stage{splitter.StageRead}
	if verify {
		stages = append(stages, splitter.StageVerifyOriginal)
	}
	stages = append(stages, splitter.StageSegment, splitter.StageWrite)
	if verify {
		stages = append(stages, splitter.StageVerifySplit)
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return Model{title: title, stages: stages, spinner: s}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.interrupted = true
			return m, tea.Quit
		}

	case StageMsg:
		if msg.Stage == splitter.StageDone {
			m.current = len(m.stages)
			return m, nil
		}
		for i, st := range m.stages {
			if st == msg.Stage {
				m.current = i
			}
		}

	case DoneMsg:
		m.done = true
		m.err = msg.Err
		if msg.Err == nil {
			m.current = len(m.stages)
		}
		return m, tea.Quit

	case spinner.TickMsg:
		if !m.done {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m Model) View() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render(m.title))
	s.WriteString("\n")

	for i, st := range m.stages {
		switch {
		case i < m.current:
			s.WriteString(doneStyle.Render("✓ ") + st.String() + "\n")
		case i == m.current && m.err != nil:
			s.WriteString(failStyle.Render("✗ ") + st.String() + "\n")
		case i == m.current && !m.done:
			s.WriteString(m.spinner.View() + " " + st.String() + "...\n")
		default:
			s.WriteString(pendingStyle.Render("  "+st.String()) + "\n")
		}
	}

	if m.interrupted {
		s.WriteString("\n" + failStyle.Render("interrupted") + "\n")
	}
	return s.String()
}

// Work is the split being displayed. It must report stages through progress.
type Work func(ctx context.Context, progress func(splitter.Stage)) (*splitter.Report, error)

type outcome struct {
	report *splitter.Report
	err    error
}

// Run shows the model on out while work runs on its own goroutine. Quitting the view
// cancels ctx; Run still waits for work to return.
func Run(ctx context.Context, out io.Writer, m Model, work Work) (*splitter.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(m, tea.WithOutput(out), tea.WithContext(ctx))
	results := make(chan outcome, 1)

	go func() {
		rep, err := work(ctx, func(st splitter.Stage) { p.Send(StageMsg{Stage: st}) })
		results <- outcome{report: rep, err: err}
		p.Send(DoneMsg{Report: rep, Err: err})
	}()

	final, uiErr := p.Run()
	cancel()
	res := <-results

	if res.err != nil {
		return res.report, res.err
	}
	if fm, ok := final.(Model); ok && fm.interrupted {
		return res.report, context.Canceled
	}
	if uiErr != nil {
		return res.report, fmt.Errorf("progress view: %w", uiErr)
	}
	return res.report, nil
}
