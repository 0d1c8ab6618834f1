package tui

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"butterfly/internal/analysis"
	"butterfly/internal/render"
	"butterfly/internal/source"

	tea "github.com/charmbracelet/bubbletea"
)

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func TestLiveModelKeysInvokeActions(t *testing.T) {
	calls := map[string]int{}
	count := func(name string) func() { return func() { calls[name]++ } }
	m := NewLiveModel(Actions{
		NextEnvelope:        count("envelope"),
		ToggleNormalization: count("normalization"),
		NextVisual:          count("visual"),
		NextStage:           count("stage"),
		Rotate:              count("rotate"),
		TogglePause:         count("pause"),
		SeekBack:            count("back"),
		SeekForward:         count("forward"),
		NextFFTSize:         count("fft"),
		NextGate:            count("gate"),
		Snapshot:            count("snapshot"),
		Quit:                count("quit"),
	})

	tests := []struct {
		msg  tea.KeyMsg
		want string
	}{
		{runes("e"), "envelope"},
		{runes("v"), "visual"},
		{runes("s"), "stage"},
		{runes("r"), "rotate"},
		{tea.KeyMsg{Type: tea.KeySpace}, "pause"},
		{runes("p"), "snapshot"},
		{runes("n"), "normalization"},
		{tea.KeyMsg{Type: tea.KeyLeft}, "back"},
		{tea.KeyMsg{Type: tea.KeyRight}, "forward"},
		{runes("f"), "fft"},
		{runes("g"), "gate"},
	}
	var model tea.Model = m
	for _, tt := range tests {
		model, _ = model.Update(tt.msg)
		if calls[tt.want] != 1 {
			t.Errorf("%q: %s called %d times", tt.msg.String(), tt.want, calls[tt.want])
		}
	}

	_, cmd := model.Update(runes("q"))
	if calls["quit"] != 1 {
		t.Error("quit action not called")
	}
	if cmd == nil {
		t.Fatal("quit returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("quit command does not quit")
	}
}

func TestLiveModelNilActions(t *testing.T) {
	var model tea.Model = NewLiveModel(Actions{})
	for _, k := range []string{"e", "n", "v", "s", "r", "f", "g", "h", "l", "p", "q"} {
		model, _ = model.Update(runes(k))
	}
}

func TestLiveModelView(t *testing.T) {
	var model tea.Model = NewLiveModel(Actions{})
	if !strings.Contains(model.View(), "Waiting for frames") {
		t.Error("empty view should wait for frames")
	}

	model, _ = model.Update(FrameMsg{
		Index:  12,
		Time:   0.2,
		Levels: []float64{1, 0.5, 0.25, 0},
		Bands:  []analysis.BandLevel{{Name: "bass", Level: 0.5}},
		Status: Status{
			Source: "song.flac", FFTSize: 4, Envelope: "Neon (Exponential)", Normalization: "log",
			Visual: "Phase -> Hue", Stage: render.AllStages,
			Position: 12.5, Duration: 180, HasGate: true, Gate: 0.05, Recording: true,
		},
	})
	model, _ = model.Update(ErrMsg{Err: errors.New("device lost")})

	view := model.View()
	for _, want := range []string{
		"song.flac", "N=4", "frame 12", "Neon (Exponential)", "(log)", "Phase -> Hue", "stage: all",
		"12.5/180.0s", "gate 0.05", "REC", "bass", "device lost",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestSpectrum(t *testing.T) {
	tests := []struct {
		name   string
		levels []float64
		width  int
		want   string
	}{
		{"empty", nil, 10, ""},
		{"zero width", []float64{1, 1}, 0, ""},
		{"single bin", []float64{1}, 10, "█"},
		{"lower half only", []float64{0, 1, 1, 1}, 10, " █"},
		{"max pooled", []float64{0, 1, 0, 0, 0, 0, 0, 0}, 2, "█ "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Spectrum(tt.levels, tt.width); got != tt.want {
				t.Errorf("Spectrum = %q, want %q", got, tt.want)
			}
		})
	}

	wide := make([]float64, 1024)
	if got := utf8.RuneCountInString(Spectrum(wide, 40)); got != 40 {
		t.Errorf("wide spectrum has %d columns, want 40", got)
	}
}

func TestLevelIndexClamps(t *testing.T) {
	tests := []struct {
		level float64
		want  int
	}{
		{-1, 0}, {0, 0}, {0.5, 5}, {1, 10}, {7, 10},
	}
	for _, tt := range tests {
		if got := levelIndex(tt.level, 10); got != tt.want {
			t.Errorf("levelIndex(%v) = %d, want %d", tt.level, got, tt.want)
		}
	}
}

func TestFrameSenderThrottles(t *testing.T) {
	var got []FrameMsg
	statusCalls := 0
	fs := NewFrameSender(func(msg tea.Msg) { got = append(got, msg.(FrameMsg)) },
		func() Status { statusCalls++; return Status{FFTSize: 4} }, 50*time.Millisecond)

	levels := [][]float64{{0, 0}, {0.3, 0.6}}
	for i, tm := range []float64{0, 0.01, 0.049, 0.05, 0.2} {
		if err := fs.Render(&render.Frame{Index: i, Time: tm, Levels: levels}); err != nil {
			t.Fatal(err)
		}
	}
	if len(got) != 3 {
		t.Fatalf("sent %d frames, want 3", len(got))
	}
	if got[1].Index != 3 || got[2].Index != 4 {
		t.Errorf("sent indices %d,%d", got[1].Index, got[2].Index)
	}
	if statusCalls != 3 || got[0].Status.FFTSize != 4 {
		t.Errorf("status calls = %d", statusCalls)
	}

	levels[1][0] = 9
	if got[0].Levels[0] != 0.3 {
		t.Error("FrameMsg aliases frame levels")
	}

	// A clock reset, e.g. a new source, is never throttled.
	fs.Render(&render.Frame{Index: 5, Time: 0})
	if len(got) != 4 {
		t.Error("frame after time went backwards was dropped")
	}
}

func TestExportModelLifecycle(t *testing.T) {
	cancelled := 0
	var model tea.Model = NewExportModel("song.wav", func() { cancelled++ })

	model, _ = model.Update(ExportFrameMsg{Index: 59, Total: 120})
	model, _ = model.Update(ProgressMsg(0.5))
	if !strings.Contains(model.View(), "frame 60 / 120") {
		t.Errorf("view:\n%s", model.View())
	}

	model, _ = model.Update(runes("q"))
	model, _ = model.Update(runes("q"))
	if cancelled != 1 {
		t.Errorf("cancel called %d times, want 1", cancelled)
	}
	if !strings.Contains(model.View(), "Stopping") {
		t.Error("view should show stopping")
	}

	model, cmd := model.Update(ExportDoneMsg{Cancelled: true})
	if cmd == nil {
		t.Fatal("done should quit")
	}
	em := model.(ExportModel)
	if em.Result() == nil || !em.Result().Cancelled {
		t.Errorf("Result = %+v", em.Result())
	}
	if !strings.Contains(em.View(), "nothing written") {
		t.Errorf("view:\n%s", em.View())
	}
}

func TestExportModelSuccess(t *testing.T) {
	var model tea.Model = NewExportModel("a.mp3", nil)
	model, _ = model.Update(runes("q"))
	model, _ = model.Update(ExportDoneMsg{Output: "a.webm", Bytes: 2048})
	em := model.(ExportModel)
	if em.percent != 1 {
		t.Errorf("percent = %v, want 1", em.percent)
	}
	if !strings.Contains(em.View(), "a.webm") {
		t.Errorf("view:\n%s", em.View())
	}
}

func fakeDevices() ([]source.Device, error) {
	return []source.Device{
		{ID: 0, Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 48000},
		{ID: 1, Name: "Built-in Mic", MaxInputChannels: 1, DefaultSampleRate: 44100},
		{ID: 2, Name: "Interface", MaxInputChannels: 2, MaxOutputChannels: 2, DefaultSampleRate: 32000},
	}, nil
}

func TestDeviceListSelection(t *testing.T) {
	m := NewDeviceListModel(fakeDevices)
	msg := m.Init()()
	dm, ok := msg.(devicesMsg)
	if !ok {
		t.Fatalf("Init produced %T", msg)
	}
	if len(dm.devices) != 2 {
		t.Fatalf("got %d input devices, want 2", len(dm.devices))
	}

	var model tea.Model = m
	model, _ = model.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	model, _ = model.Update(dm)
	if !strings.Contains(model.View(), "Built-in Mic") {
		t.Errorf("view:\n%s", model.View())
	}

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyDown})
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	view := model.View()
	if !strings.Contains(view, "Configure Device: Interface") {
		t.Errorf("view:\n%s", view)
	}
	// Non-standard default rates are offered first.
	if !strings.Contains(view, "32000 Hz") {
		t.Errorf("default rate missing:\n%s", view)
	}

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyDown})
	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("confirm should quit")
	}
	sel := model.(DeviceListModel).Selection()
	if sel == nil {
		t.Fatal("no selection")
	}
	if sel.Device.ID != 2 || sel.SampleRate != 44100 {
		t.Errorf("selection = %+v", sel)
	}
}

func TestDeviceListFetchError(t *testing.T) {
	boom := errors.New("no portaudio")
	m := NewDeviceListModel(func() ([]source.Device, error) { return nil, boom })
	var model tea.Model = m
	model, _ = model.Update(m.Init()())
	if !strings.Contains(model.View(), "no portaudio") {
		t.Errorf("view:\n%s", model.View())
	}
}
