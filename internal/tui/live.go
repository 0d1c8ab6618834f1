package tui

import (
	"fmt"
	"strings"
	"time"

	"butterfly/internal/analysis"
	"butterfly/internal/render"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Status describes the session settings shown in the header.
type Status struct {
	Source        string
	FFTSize       int
	Envelope      string
	Normalization string
	Visual        string
	Stage         int
	Rotation      int
	Paused        bool

	// Position and Duration are set for sources with a playhead.
	Position float64
	Duration float64

	// Gate is the microphone gate threshold, 0 when open.
	HasGate   bool
	Gate      float64
	Recording bool
}

// FrameMsg carries a copy of one rendered frame into the program.
type FrameMsg struct {
	Index  int
	Time   float64
	Levels []float64 // final stage
	Bands  []analysis.BandLevel
	Status Status
}

// ErrMsg reports a pipeline error to the view.
type ErrMsg struct{ Err error }

// Actions are invoked from key presses. Implementations must hand the work
// to the host loop; they are called on the program's goroutine.
type Actions struct {
	NextEnvelope        func()
	ToggleNormalization func()
	NextVisual          func()
	NextStage           func()
	Rotate              func()
	TogglePause         func()
	SeekBack            func()
	SeekForward         func()
	NextFFTSize         func()
	NextGate            func()
	Snapshot            func()
	Quit                func()
}

// KeyMap binds the live view keys.
type KeyMap struct {
	Envelope      key.Binding
	Normalization key.Binding
	Visual        key.Binding
	Stage         key.Binding
	Rotate        key.Binding
	Pause         key.Binding
	SeekBack      key.Binding
	SeekForward   key.Binding
	FFTSize       key.Binding
	Gate          key.Binding
	Snapshot      key.Binding
	Quit          key.Binding
}

// DefaultKeyMap returns the live view bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Envelope:      key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "envelope")),
		Normalization: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "log/linear")),
		Visual:        key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "visual preset")),
		Stage:         key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stage")),
		Rotate:        key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rotate")),
		Pause:         key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "pause")),
		SeekBack:      key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "-5s")),
		SeekForward:   key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "+5s")),
		FFTSize:       key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "fft size")),
		Gate:          key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "gate")),
		Snapshot:      key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "save png")),
		Quit:          key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k KeyMap) help() string {
	var parts []string
	for _, b := range []key.Binding{
		k.Pause, k.SeekBack, k.SeekForward, k.FFTSize, k.Envelope, k.Normalization,
		k.Visual, k.Stage, k.Rotate, k.Gate, k.Snapshot, k.Quit,
	} {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, "  ")
}

// LiveModel is the terminal companion of the realtime view: a spectrum of
// the smoothed final stage plus the band summary.
type LiveModel struct {
	keys    KeyMap
	actions Actions

	frame    FrameMsg
	hasFrame bool
	err      error
	width    int
	quitting bool
}

// NewLiveModel creates the live view.
func NewLiveModel(actions Actions) LiveModel {
	return LiveModel{keys: DefaultKeyMap(), actions: actions, width: 80}
}

func (m LiveModel) Init() tea.Cmd { return nil }

func call(fn func()) {
	if fn != nil {
		fn()
	}
}

func (m LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case FrameMsg:
		m.frame = msg
		m.hasFrame = true

	case ErrMsg:
		m.err = msg.Err

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			call(m.actions.Quit)
			return m, tea.Quit
		case key.Matches(msg, m.keys.Pause):
			call(m.actions.TogglePause)
		case key.Matches(msg, m.keys.SeekBack):
			call(m.actions.SeekBack)
		case key.Matches(msg, m.keys.SeekForward):
			call(m.actions.SeekForward)
		case key.Matches(msg, m.keys.FFTSize):
			call(m.actions.NextFFTSize)
		case key.Matches(msg, m.keys.Envelope):
			call(m.actions.NextEnvelope)
		case key.Matches(msg, m.keys.Normalization):
			call(m.actions.ToggleNormalization)
		case key.Matches(msg, m.keys.Gate):
			call(m.actions.NextGate)
		case key.Matches(msg, m.keys.Visual):
			call(m.actions.NextVisual)
		case key.Matches(msg, m.keys.Stage):
			call(m.actions.NextStage)
		case key.Matches(msg, m.keys.Rotate):
			call(m.actions.Rotate)
		case key.Matches(msg, m.keys.Snapshot):
			call(m.actions.Snapshot)
		}
	}
	return m, nil
}

func (m LiveModel) View() string {
	if m.quitting {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Butterfly"))
	sb.WriteString("\n\n")

	if !m.hasFrame {
		sb.WriteString(dimStyle.Render("Waiting for frames..."))
	} else {
		st := m.frame.Status
		state := "live"
		if st.Paused {
			state = "paused"
		}
		stage := "all"
		if st.Stage != render.AllStages {
			stage = fmt.Sprint(st.Stage)
		}
		sb.WriteString(infoStyle.Render(fmt.Sprintf("%s  N=%d  %s  t=%.2fs  frame %d",
			st.Source, st.FFTSize, state, m.frame.Time, m.frame.Index)))
		if st.Duration > 0 {
			sb.WriteString(infoStyle.Render(fmt.Sprintf("  %.1f/%.1fs", st.Position, st.Duration)))
		}
		if st.HasGate {
			gate := "off"
			if st.Gate > 0 {
				gate = fmt.Sprintf("%.2f", st.Gate)
			}
			sb.WriteString(infoStyle.Render("  gate " + gate))
		}
		if st.Recording {
			sb.WriteString(errorStyle.Render("  REC"))
		}
		sb.WriteString("\n")
		sb.WriteString(infoStyle.Render(fmt.Sprintf("envelope: %s (%s)  visual: %s  stage: %s  rotation: %d",
			highlightStyle.Render(st.Envelope), st.Normalization, highlightStyle.Render(st.Visual), stage, st.Rotation)))
		sb.WriteString("\n\n")
		sb.WriteString(barStyle.Render(Spectrum(m.frame.Levels, m.width-2)))
		sb.WriteString("\n\n")
		sb.WriteString(Bands(m.frame.Bands, 30))
	}

	if m.err != nil {
		sb.WriteString("\n")
		sb.WriteString(errorStyle.Render("error: " + m.err.Error()))
	}
	sb.WriteString("\n\n")
	sb.WriteString(dimStyle.Render(m.keys.help()))
	return sb.String()
}

var blocks = []rune(" ▁▂▃▄▅▆▇█")

// Spectrum draws the lower half of levels (up to Nyquist) as one row of
// block characters no wider than width. Bins are max-pooled to fit.
func Spectrum(levels []float64, width int) string {
	half := len(levels) / 2
	if len(levels) == 1 {
		half = 1
	}
	if half == 0 || width <= 0 {
		return ""
	}
	cols := min(half, width)
	out := make([]rune, cols)
	for c := range cols {
		lo := c * half / cols
		hi := max((c+1)*half/cols, lo+1)
		peak := 0.0
		for _, v := range levels[lo:hi] {
			peak = max(peak, v)
		}
		out[c] = blocks[levelIndex(peak, len(blocks)-1)]
	}
	return string(out)
}

// Bands draws one labelled horizontal bar per band.
func Bands(bands []analysis.BandLevel, width int) string {
	var sb strings.Builder
	for i, b := range bands {
		n := levelIndex(b.Level, width)
		fmt.Fprintf(&sb, "%-8s %s%s %.2f", b.Name,
			barStyle.Render(strings.Repeat("█", n)), strings.Repeat(" ", width-n), b.Level)
		if i < len(bands)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func levelIndex(level float64, steps int) int {
	switch {
	case !(level > 0):
		return 0
	case level >= 1:
		return steps
	}
	return int(level*float64(steps) + 0.5)
}

// FrameSender forwards rendered frames into a running program, at most one
// per interval of frame time. It is a render.Renderer and runs on the host
// loop, so status may read session state directly.
type FrameSender struct {
	send     func(tea.Msg)
	status   func() Status
	interval float64
	last     float64
	sent     bool
}

// NewFrameSender throttles frames to interval. send is usually
// (*tea.Program).Send.
func NewFrameSender(send func(tea.Msg), status func() Status, interval time.Duration) *FrameSender {
	return &FrameSender{send: send, status: status, interval: interval.Seconds()}
}

func (f *FrameSender) Render(frame *render.Frame) error {
	if f.sent && frame.Time >= f.last && frame.Time-f.last < f.interval {
		return nil
	}
	f.sent = true
	f.last = frame.Time

	msg := FrameMsg{Index: frame.Index, Time: frame.Time}
	if n := len(frame.Levels); n > 0 {
		msg.Levels = append([]float64(nil), frame.Levels[n-1]...)
	}
	msg.Bands = append([]analysis.BandLevel(nil), frame.Bands...)
	if f.status != nil {
		msg.Status = f.status()
	}
	f.send(msg)
	return nil
}

var _ render.Renderer = (*FrameSender)(nil)
