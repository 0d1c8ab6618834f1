package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
)

// ProgressMsg reports export progress in [0,1].
type ProgressMsg float64

// ExportFrameMsg reports the frame just rendered.
type ExportFrameMsg struct{ Index, Total int }

// ExportDoneMsg ends the export view. Cancelled exports set Cancelled and
// leave Err nil.
type ExportDoneMsg struct {
	Output    string
	Bytes     int
	Cancelled bool
	Err       error
}

// ExportModel shows a progress bar while an offline export runs.
type ExportModel struct {
	name     string
	progress progress.Model
	percent  float64
	frame    int
	total    int

	cancel     func()
	quit       key.Binding
	cancelling bool
	done       *ExportDoneMsg
}

// NewExportModel creates the export view. cancel is called at most once
// when the user asks to stop; it should post Stop to the host loop.
func NewExportModel(name string, cancel func()) ExportModel {
	return ExportModel{
		name: name,
		progress: progress.New(
			progress.WithScaledGradient("#4D7CFE", "#25A065"),
		),
		cancel: cancel,
		quit:   key.NewBinding(key.WithKeys("q", "esc", "ctrl+c")),
	}
}

// Result returns the final message, nil while the export is running.
func (m ExportModel) Result() *ExportDoneMsg { return m.done }

func (m ExportModel) Init() tea.Cmd { return nil }

func (m ExportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.progress.Width = min(max(msg.Width-8, 20), 60)

	case ProgressMsg:
		m.percent = min(max(float64(msg), 0), 1)

	case ExportFrameMsg:
		m.frame, m.total = msg.Index, msg.Total

	case ExportDoneMsg:
		m.done = &msg
		if msg.Err == nil && !msg.Cancelled {
			m.percent = 1
		}
		return m, tea.Quit

	case tea.KeyMsg:
		if key.Matches(msg, m.quit) && !m.cancelling {
			m.cancelling = true
			if m.cancel != nil {
				m.cancel()
			}
		}
	}
	return m, nil
}

func (m ExportModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Exporting " + m.name))
	sb.WriteString("\n\n")
	sb.WriteString(m.progress.ViewAs(m.percent))
	sb.WriteString("\n")
	if m.total > 0 {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("frame %d / %d", m.frame+1, m.total)))
		sb.WriteString("\n")
	}

	switch {
	case m.done == nil && m.cancelling:
		sb.WriteString(infoStyle.Render("Stopping..."))
	case m.done == nil:
		sb.WriteString(dimStyle.Render("q: cancel"))
	case m.done.Err != nil:
		sb.WriteString(errorStyle.Render("export failed: " + m.done.Err.Error()))
	case m.done.Cancelled:
		sb.WriteString(infoStyle.Render("Export cancelled, nothing written."))
	default:
		sb.WriteString(highlightStyle.Render(fmt.Sprintf("Wrote %s (%d bytes)", m.done.Output, m.done.Bytes)))
	}
	sb.WriteString("\n")
	return sb.String()
}
