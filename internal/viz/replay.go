package viz

import (
	"fmt"
	"image"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/gassim/internal/analysis"
	"github.com/san-kum/gassim/internal/dynamo"
)

const (
	width  = 48
	height = 24

	histBins   = 16
	histWindow = 50
	maxSpeedup = 64

	statusPlaying  = "PLAYING"
	statusPaused   = "PAUSED"
	statusFinished = "FINISHED"
)

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Model replays a recorded trajectory in the terminal: the box and particles
// on a braille canvas, next to the speed histogram of the recent frames and
// the Maxwell-Boltzmann density it should approach.
type Model struct {
	traj   *dynamo.Trajectory
	box    float64
	radius float64
	mb     analysis.MaxwellBoltzmann
	name   string

	canvas        *Canvas
	width, height int
	theme         Theme
	styles        styles

	energy []float64
	vmax   float64

	frame    int
	speed    int
	running  bool
	showHelp bool

	recording bool
	frames    []*image.Paletted
	gifPath   string
	err       error
}

// NewReplay builds a replay model positioned at the first frame, playing.
func NewReplay(traj *dynamo.Trajectory, box, radius float64, mb analysis.MaxwellBoltzmann) Model {
	energy := make([]float64, traj.Len())
	vmax := 0.0
	for k := range energy {
		energy[k] = traj.KineticEnergy(k, mb.Mass)
		for _, v := range traj.Speeds[k] {
			vmax = max(vmax, v)
		}
	}
	// leave room for the tail of the reference density
	vmax = max(vmax, 3*mb.MostProbableSpeed())

	theme := Themes[0]
	return Model{
		traj:    traj,
		box:     box,
		radius:  radius,
		mb:      mb,
		name:    "gas",
		canvas:  NewCanvas(width, height),
		width:   width,
		height:  height,
		theme:   theme,
		styles:  newStyles(theme),
		energy:  energy,
		vmax:    vmax,
		speed:   1,
		running: traj.Len() > 1,
		gifPath: "replay.gif",
	}
}

// WithName sets the title shown above the stats panel.
func (m Model) WithName(name string) Model {
	m.name = name
	return m
}

// WithTheme selects a theme by name.
func (m Model) WithTheme(name string) Model {
	m.theme = GetTheme(name)
	m.styles = newStyles(m.theme)
	return m
}

// WithGIFPath sets where the G key writes its recording.
func (m Model) WithGIFPath(path string) Model {
	m.gifPath = path
	return m
}

// Frame returns the index of the frame being shown.
func (m Model) Frame() int { return m.frame }

// Speed returns how many frames each tick advances.
func (m Model) Speed() int { return m.speed }

func (m Model) Running() bool { return m.running }

func (m Model) Init() tea.Cmd {
	return tick()
}

// Update handles input events and advances playback.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.recording {
				m.stopRecording()
			}
			return m, tea.Quit
		case " ":
			if !m.running && m.frame >= m.last() {
				m.frame = 0
			}
			m.running = !m.running && m.traj.Len() > 1
		case "r":
			m.frame = 0
			m.running = m.traj.Len() > 1
		case "[":
			m.scrub(-1)
		case "]":
			m.scrub(1)
		case "+", "=":
			m.speed = min(m.speed*2, maxSpeedup)
		case "-", "_":
			m.speed = max(m.speed/2, 1)
		case "g":
			if m.recording {
				m.stopRecording()
			} else {
				m.recording = true
				m.frames = m.frames[:0]
				m.err = nil
			}
		case "t":
			m.theme = m.theme.next()
			m.styles = newStyles(m.theme)
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running {
			m.advance(m.speed)
		}
		if m.recording {
			m.draw()
			m.frames = append(m.frames, canvasImage(m.canvas))
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) last() int { return max(m.traj.Len()-1, 0) }

// advance moves the play head forward n frames, pausing on the last one.
func (m *Model) advance(n int) {
	m.frame += n
	if m.frame >= m.last() {
		m.frame = m.last()
		m.running = false
	}
}

// scrub pauses playback and jumps a fiftieth of the run in direction dir.
func (m *Model) scrub(dir int) {
	m.running = false
	jump := max(m.traj.Len()/50, 1)
	m.frame = min(max(m.frame+dir*jump, 0), m.last())
}

func (m *Model) stopRecording() {
	m.recording = false
	m.err = SaveGIF(m.gifPath, m.frames)
	m.frames = nil
}

// toCanvas maps box coordinates to canvas dots, y pointing up.
func (m *Model) toCanvas(x, y float64) (int, int) {
	cw, ch := m.canvas.Dots()
	sx := x / m.box * float64(cw-1)
	sy := float64(ch-1) - y/m.box*float64(ch-1)
	return int(sx + 0.5), int(sy + 0.5)
}

func (m *Model) draw() {
	m.canvas.Clear()
	cw, ch := m.canvas.Dots()
	m.canvas.DrawRect(0, 0, cw-1, ch-1)
	if m.traj.Len() == 0 {
		return
	}
	r := int(m.radius/m.box*float64(cw-1) + 0.5)
	for _, p := range m.traj.Positions[m.frame] {
		x, y := m.toCanvas(p.X, p.Y)
		m.canvas.DrawCircle(x, y, r)
	}
}

// windowSpeeds pools the speeds of the frames leading up to the play head.
func (m *Model) windowSpeeds() []float64 {
	from := max(m.frame-histWindow+1, 0)
	var out []float64
	for k := from; k <= m.frame && k < m.traj.Len(); k++ {
		out = append(out, m.traj.Speeds[k]...)
	}
	return out
}

func (m Model) status() string {
	switch {
	case m.running:
		return statusPlaying
	case m.frame >= m.last():
		return statusFinished
	default:
		return statusPaused
	}
}

// View renders the TUI interface.
func (m Model) View() string {
	m.draw()
	canvasView := m.styles.canvas.Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(m.styles.header.Render(strings.ToUpper(m.name)) + "\n")

	status := m.status()
	if m.speed > 1 {
		status += fmt.Sprintf(" x%d", m.speed)
	}
	s.WriteString(m.styles.status[m.status()].Render(status))
	if m.recording {
		s.WriteString(m.styles.status[statusFinished].Render("  ● REC"))
	}
	s.WriteString("\n")

	progress := 0.0
	if m.last() > 0 {
		progress = float64(m.frame) / float64(m.last())
	}
	s.WriteString(ProgressBar(progress, 30) + "\n\n")

	s.WriteString(m.styles.label.Render("Step") + m.styles.value.Render(fmt.Sprintf("%d/%d", m.frame, m.last())) + "\n")
	s.WriteString(m.styles.label.Render("Time") + m.styles.value.Render(fmt.Sprintf("%.2f", m.traj.Time(m.frame))) + "\n")
	if m.traj.Len() > 0 {
		s.WriteString(m.styles.label.Render("Energy") + m.styles.value.Render(fmt.Sprintf("%.4f", m.energy[m.frame])) + "\n")
		s.WriteString(m.styles.label.Render("History") + m.styles.value.Render(Sparkline(m.energy[:m.frame+1], 30)) + "\n")
	}
	s.WriteString(m.styles.label.Render("<v> theory") + m.styles.value.Render(fmt.Sprintf("%.3f", m.mb.MeanSpeed())) + "\n")

	if chart := m.histogramChart(); chart != "" {
		s.WriteString(m.styles.graph.Render(chart) + "\n")
	}
	if m.err != nil {
		s.WriteString(m.styles.status[statusPaused].Render("gif: "+m.err.Error()) + "\n")
	}

	s.WriteString(m.styles.help.Render("SP:Pause R:Restart Q:Quit\n[ ]:Scrub +/-:Speed G:Record T:Theme ?:Help"))
	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, m.styles.stats.Render(s.String()))

	if m.showHelp {
		return helpText + "\n" + mainView
	}
	return mainView
}

// histogramChart plots the windowed speed density against the reference
// density at the bin centres.
func (m Model) histogramChart() string {
	speeds := m.windowSpeeds()
	if len(speeds) == 0 {
		return ""
	}
	h := analysis.SpeedHistogram(speeds, histBins, m.vmax)
	ref := make([]float64, len(h.Density))
	for i, c := range h.Centers() {
		ref[i] = m.mb.Density(c)
	}
	return asciigraph.PlotMany([][]float64{h.Density, ref},
		asciigraph.Height(8),
		asciigraph.Width(28),
		asciigraph.SeriesColors(asciigraph.Cyan, asciigraph.Yellow),
		asciigraph.Caption("speeds vs Maxwell-Boltzmann"),
	)
}

const helpText = `
╔══════════════════════════════════════╗
║           KEYBOARD SHORTCUTS         ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume replay      ║
║  R        - Restart from step 0      ║
║  Q        - Quit                     ║
║  [ ]      - Scrub backward/forward   ║
║  + -      - Faster/slower playback   ║
║  G        - Toggle GIF recording     ║
║  T        - Cycle themes             ║
║  ?        - Toggle this help         ║
╚══════════════════════════════════════╝
`

// Run starts the replay in the alternate screen and blocks until it quits.
func Run(m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
