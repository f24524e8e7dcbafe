// Command fdserialmon is a live terminal monitor for the software UART: it
// steps a loopback sim.Link on a timer and renders the transmitting
// device's send_ready flag and TX line level, the receiving device's
// occupancy and drop count, and the last few sent and read bytes.
package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/halfbit/fdserial/sim"
	"github.com/halfbit/fdserial/uart"
)

type stepTick struct{}

func doStep() tea.Cmd {
	return tea.Tick(5*time.Millisecond, func(t time.Time) tea.Msg {
		return stepTick{}
	})
}

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	titleStyle = lipgloss.NewStyle().
			Foreground(subtle).
			Padding(0, 1)

	txStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(highlight).
		Padding(1).
		Width(30)

	rxStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(special).
		Padding(1).
		Width(30)

	logStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(highlight).
			Padding(1).
			Width(62)
)

// Monitor is the bubbletea model: one loopback link (A's TX wired to B's
// RX and back), stepped once per tick while paused is false.
type Monitor struct {
	a, b   *uart.Device
	link   *sim.Link
	paused bool
	ticks  uint64

	txLog []string
	rxLog []string

	sendInput textinput.Model
	showInput bool
}

func newMonitor(a, b *uart.Device) *Monitor {
	ti := textinput.New()
	ti.Placeholder = "hex byte, e.g. A5"
	ti.CharLimit = 2
	ti.Width = 4

	return &Monitor{
		a:         a,
		b:         b,
		link:      sim.NewLink(a, b),
		sendInput: ti,
	}
}

func (m *Monitor) Init() tea.Cmd {
	return doStep()
}

func (m *Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stepTick:
		if !m.paused {
			m.link.Step()
			m.ticks++
		}
		return m, doStep()

	case tea.KeyMsg:
		if m.showInput {
			switch msg.Type {
			case tea.KeyEnter:
				if v, err := strconv.ParseUint(m.sendInput.Value(), 16, 8); err == nil {
					go m.a.Send(byte(v))
					m.txLog = append(m.txLog, fmt.Sprintf("%02X", v))
				}
				m.sendInput.SetValue("")
				m.showInput = false
				return m, nil
			case tea.KeyEsc:
				m.showInput = false
				return m, nil
			}
			var cmd tea.Cmd
			m.sendInput, cmd = m.sendInput.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "p":
			m.paused = !m.paused
		case "s":
			m.showInput = true
			m.sendInput.Focus()
			return m, textinput.Blink
		case "r":
			if m.b.Available() > 0 {
				m.rxLog = append(m.rxLog, fmt.Sprintf("%02X", m.b.Recv()))
			}
		}
	}
	return m, nil
}

func (m *Monitor) View() string {
	txPanel := txStyle.Render(fmt.Sprintf(
		"TX engine\n\nsend_ready: %v\nlevel: %s\nlog: %s",
		m.a.SendOK(), levelName(m.a.TXLevel()), strings.Join(lastN(m.txLog, 6), " "),
	))

	rxPanel := rxStyle.Render(fmt.Sprintf(
		"RX engine\n\navailable: %d\ndropped: %d\nlog: %s",
		m.b.Available(), m.b.DroppedBytes(), strings.Join(lastN(m.rxLog, 6), " "),
	))

	status := "running"
	if m.paused {
		status = "paused"
	}
	header := titleStyle.Render(fmt.Sprintf("fdserialmon — ticks=%d [%s]", m.ticks, status))

	help := "p: pause/run  s: send byte  r: read byte  q: quit"
	if m.showInput {
		help = "enter hex byte, Enter to send, Esc to cancel: " + m.sendInput.View()
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, txPanel, rxPanel)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, logStyle.Render(help))
}

func levelName(high bool) string {
	if high {
		return "high"
	}
	return "low"
}

func lastN(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func main() {
	rate := flag.Int("rate", 9600, "serial rate in bits/sec")
	cpuFreq := flag.Int("cpufreq", 8_000_000, "simulated CPU clock frequency in Hz")
	ring := flag.Int("ring", 0, "ring buffer size (0 = single-slot)")
	flag.Parse()

	cfg := uart.Config{CPUFreq: *cpuFreq, Rate: *rate, RingBufferSize: *ring}
	a, err := uart.New(cfg, nil)
	if err != nil {
		fmt.Println("error: tx device:", err)
		return
	}
	b, err := uart.New(cfg, nil)
	if err != nil {
		fmt.Println("error: rx device:", err)
		return
	}

	p := tea.NewProgram(newMonitor(a, b))
	if _, err := p.Run(); err != nil {
		fmt.Println("error running program:", err)
	}
}
