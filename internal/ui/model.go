// ABOUTME: Bubbletea model for the studio console
// ABOUTME: Holds script, voice, ambience and fader state and turns keys into studio calls
package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/castvox/castvox-go/internal/ambience"
	"github.com/castvox/castvox-go/internal/catalog"
	"github.com/castvox/castvox-go/internal/store"
	"github.com/castvox/castvox-go/internal/studio"
	"github.com/castvox/castvox-go/pkg/engine"
	"github.com/castvox/castvox-go/pkg/mixer"
)

// faderStep is how far one key press moves a fader
const faderStep = 0.05

// Studio is the render surface the console drives
type Studio interface {
	Render(ctx context.Context, req studio.RenderRequest) (engine.SessionHandle, error)
	Stop()
	Mixer() *mixer.Mixer
	ExportWAV(w io.WriteSeeker) error
	SaveProject(req studio.RenderRequest) (store.Project, error)
}

// Visual is the waveform loop the console starts and stops
type Visual interface {
	SetPlaying(playing bool)
	Resize()
}

type focus int

const (
	focusControls focus = iota
	focusScript
)

// Model represents the TUI state
type Model struct {
	ctx     context.Context
	studio  Studio
	visual  Visual
	canvas  *Canvas
	script  textinput.Model
	spinner spinner.Model
	focus   focus

	voices   []string
	voice    int
	ambience int
	persona  string
	fader    int

	pending   int // renders in flight
	state     engine.State
	status    string
	err       string
	wave      string
	intensity float64

	exportPath string

	width  int
	height int
}

// Options configures a new model
type Options struct {
	Studio     Studio
	Visual     Visual
	Canvas     *Canvas
	Text       string
	Voice      string
	Ambience   string
	Persona    string
	ExportPath string
}

// SessionMsg carries an engine session transition
type SessionMsg engine.SessionEvent

// FrameMsg reports that the canvas holds a new frame
type FrameMsg struct {
	Intensity float64
	Playing   bool
}

// StatusMsg sets the status line
type StatusMsg struct {
	Text string
	Err  error
}

type renderDoneMsg struct {
	handle engine.SessionHandle
	err    error
}

// NewModel creates a new TUI model
func NewModel(ctx context.Context, opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = "Type the script to render"
	ti.CharLimit = 5000
	ti.SetValue(opts.Text)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	m := Model{
		ctx:        ctx,
		studio:     opts.Studio,
		visual:     opts.Visual,
		canvas:     opts.Canvas,
		script:     ti,
		spinner:    sp,
		voices:     catalog.Names(),
		persona:    opts.Persona,
		exportPath: opts.ExportPath,
	}
	if m.exportPath == "" {
		m.exportPath = "castvox-render.wav"
	}
	for i, name := range m.voices {
		if strings.EqualFold(name, opts.Voice) {
			m.voice = i
		}
	}
	for i, o := range ambience.Options {
		if strings.EqualFold(o.ID, opts.Ambience) {
			m.ambience = i
		}
	}
	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.focus == focusScript {
			return m.handleScriptKey(msg)
		}
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.script.Width = max(msg.Width-12, 10)
		if m.canvas != nil {
			m.canvas.SetSize(max(msg.Width-4, 10), waveRows)
			return m, m.visualCmd(func(v Visual) { v.Resize() })
		}

	case SessionMsg:
		m.state = msg.State
		playing := msg.State == engine.Playing
		if msg.State == engine.Playing {
			m.status = "playing " + m.voiceName()
		}
		return m, m.visualCmd(func(v Visual) { v.SetPlaying(playing) })

	case FrameMsg:
		m.intensity = msg.Intensity
		if m.canvas != nil {
			m.wave = m.canvas.String()
		}

	case renderDoneMsg:
		m.pending = max(m.pending-1, 0)
		if text := studio.UserMessage(msg.err); text != "" {
			m.err = text
			m.status = ""
		}

	case StatusMsg:
		m.status, m.err = msg.Text, ""
		switch {
		case errors.Is(msg.Err, studio.ErrNothingRendered):
			m.err = studio.UserMessage(msg.Err)
		case msg.Err != nil:
			m.err = msg.Err.Error()
		}

	case spinner.TickMsg:
		if m.pending == 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// visualCmd runs fn off the update loop; the driver draws synchronously
// and its frame callback sends back into the program
func (m Model) visualCmd(fn func(Visual)) tea.Cmd {
	if m.visual == nil {
		return nil
	}
	v := m.visual
	return func() tea.Msg {
		fn(v)
		return nil
	}
}

func (m Model) handleScriptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc", "tab":
		m.focus = focusControls
		m.script.Blur()
		return m, nil
	case "enter":
		m.focus = focusControls
		m.script.Blur()
		return m.startRender()
	}

	var cmd tea.Cmd
	m.script, cmd = m.script.Update(msg)
	return m, cmd
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "tab", "i":
		m.focus = focusScript
		return m, m.script.Focus()
	case "enter", "r":
		return m.startRender()
	case "s", " ":
		m.studio.Stop()
		m.status = "stopped"
	case "left", "h":
		m.fader = (m.fader + len(engine.Channels) - 1) % len(engine.Channels)
	case "right", "l":
		m.fader = (m.fader + 1) % len(engine.Channels)
	case "up", "k":
		m.nudge(faderStep)
	case "down", "j":
		m.nudge(-faderStep)
	case "m":
		ch := engine.Channels[m.fader]
		if _, err := m.studio.Mixer().ToggleMute(ch); err != nil {
			m.err = fmt.Sprintf("%s has no mute", ch)
		}
	case "v":
		m.voice = (m.voice + 1) % len(m.voices)
	case "V":
		m.voice = (m.voice + len(m.voices) - 1) % len(m.voices)
	case "a":
		m.ambience = (m.ambience + 1) % len(ambience.Options)
	case "e":
		return m, m.exportCmd()
	case "p":
		return m, m.saveCmd()
	}

	return m, nil
}

func (m *Model) nudge(delta float64) {
	if _, err := m.studio.Mixer().Nudge(engine.Channels[m.fader], delta); err != nil {
		m.err = err.Error()
	}
}

func (m Model) request() studio.RenderRequest {
	return studio.RenderRequest{
		Text:              m.script.Value(),
		Voice:             m.voiceName(),
		SystemInstruction: m.persona,
		AmbienceID:        ambience.Options[m.ambience].ID,
	}
}

func (m Model) voiceName() string {
	if len(m.voices) == 0 {
		return ""
	}
	return m.voices[m.voice]
}

func (m Model) startRender() (tea.Model, tea.Cmd) {
	req := m.request()
	if strings.TrimSpace(req.Text) == "" {
		m.err = studio.UserMessage(studio.ErrEmptyText)
		return m, nil
	}

	m.pending++
	m.err = ""
	m.status = "rendering " + req.Voice

	st, ctx := m.studio, m.ctx
	render := func() tea.Msg {
		h, err := st.Render(ctx, req)
		return renderDoneMsg{handle: h, err: err}
	}
	return m, tea.Batch(render, m.spinner.Tick)
}

func (m Model) exportCmd() tea.Cmd {
	st, path := m.studio, m.exportPath
	return func() tea.Msg {
		f, err := os.Create(path)
		if err != nil {
			return StatusMsg{Err: err}
		}
		if err := st.ExportWAV(f); err != nil {
			f.Close()
			os.Remove(path)
			return StatusMsg{Err: err}
		}
		if err := f.Close(); err != nil {
			return StatusMsg{Err: err}
		}
		return StatusMsg{Text: "exported " + path}
	}
}

func (m Model) saveCmd() tea.Cmd {
	st, req := m.studio, m.request()
	return func() tea.Msg {
		p, err := st.SaveProject(req)
		if err != nil {
			return StatusMsg{Err: err}
		}
		return StatusMsg{Text: "saved project " + p.Title}
	}
}

const waveRows = 6

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle     = lipgloss.NewStyle().Faint(true)
	waveStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
)

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(m.renderScript())
	b.WriteString("\n")
	b.WriteString(m.renderVoice())
	b.WriteString("\n\n")
	b.WriteString(waveStyle.Render(m.renderWave()))
	b.WriteString("\n")
	b.WriteString(m.renderFaders())
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) renderHeader() string {
	return titleStyle.Render("castvox studio") + "  " + valueStyle.Render(m.state.String())
}

func (m Model) renderScript() string {
	label := labelStyle.Render("Script: ")
	if m.focus == focusScript {
		label = selectedStyle.Render("Script: ")
	}
	return label + m.script.View()
}

func (m Model) renderVoice() string {
	name := m.voiceName()
	detail := ""
	if v, ok := catalog.Lookup(name); ok {
		detail = fmt.Sprintf("%s, %s, %s", v.Analysis.Gender, v.Pitch, strings.Join(v.Characteristics, ", "))
	}
	detail = truncate.StringWithTail(detail, uint(max(m.width-40, 10)), "...")

	return labelStyle.Render("Voice: ") + selectedStyle.Render(name) + " " + valueStyle.Render(detail) +
		"   " + labelStyle.Render("Ambience: ") + valueStyle.Render(ambience.Options[m.ambience].Name)
}

func (m Model) renderWave() string {
	if m.wave != "" {
		return m.wave
	}
	width := max(m.width-4, 10)
	lines := make([]string, waveRows)
	for i := range lines {
		lines[i] = strings.Repeat(" ", width)
	}
	lines[waveRows/2] = helpStyle.Render(strings.Repeat("─", width))
	return strings.Join(lines, "\n")
}

func (m Model) renderFaders() string {
	levels := m.studio.Mixer().Levels()
	var b strings.Builder
	for i, ch := range engine.Channels {
		l, _ := levels.Get(ch)
		name := fmt.Sprintf("%-9s", ch)
		if i == m.fader {
			name = selectedStyle.Render("▸ " + name)
		} else {
			name = labelStyle.Render("  " + name)
		}
		mute := ""
		if l.Muted {
			mute = errStyle.Render(" muted")
		}
		b.WriteString(fmt.Sprintf("%s [%s] %3.0f%%%s\n", name, renderBar(l.Volume, engine.MaxVolume, 20), l.Volume*100, mute))
	}
	return b.String()
}

func (m Model) renderStatus() string {
	var s string
	if m.pending > 0 {
		s = m.spinner.View() + " "
	}
	s += valueStyle.Render(m.status)
	if m.err != "" {
		s += "  " + errStyle.Render(m.err)
	}
	return s
}

func (m Model) renderHelp() string {
	if m.focus == focusScript {
		return helpStyle.Render("enter:render  esc:done editing  ctrl+c:quit")
	}
	return helpStyle.Render("i:edit  r:render  s:stop  ←/→:fader  ↑/↓:level  m:mute  v/V:voice  a:ambience  e:export  p:save  q:quit")
}

func renderBar(value, maxValue float64, width int) string {
	filled := int(value / maxValue * float64(width))
	filled = min(max(filled, 0), width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
