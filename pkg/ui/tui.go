package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sys/unix"

	"github.com/srodi/proctop/pkg/control"
	"github.com/srodi/proctop/pkg/dispatch"
	"github.com/srodi/proctop/pkg/sampler"
	"github.com/srodi/proctop/pkg/store"
	"github.com/srodi/proctop/pkg/types"
)

const (
	refreshEvery   = 500 * time.Millisecond
	intervalStep   = 500 * time.Millisecond
	headerReserved = 4
)

var (
	baseStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("170")).
			Bold(true)

	coreStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	memStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("44"))
	swapStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))

	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Signaller delivers process control requests; *control.Worker satisfies it.
type Signaller interface {
	Signal(pid int32, sig unix.Signal) <-chan control.Result
	Renice(pid int32, nice int) <-chan control.Result
}

// Tuner changes sampler settings; *sampler.Sampler satisfies it.
type Tuner interface {
	Settings() sampler.Settings
	Reconfigure(sampler.Settings)
}

type tickMsg time.Time

type controlMsg control.Result

type fatalMsg struct{ err error }

// pendingSignal is a signal waiting for y/N confirmation.
type pendingSignal struct {
	pid  int32
	name string
	sig  unix.Signal
}

// Model is the interactive display. It reads batches only through the store
// and talks back to the sampler and control worker through their interfaces.
type Model struct {
	store  *store.Store
	source *dispatch.Channel
	ctl    Signaller
	tuner  Tuner
	fatal  <-chan error

	table     table.Model
	filter    textinput.Model
	filtering bool
	confirm   *pendingSignal
	rows      []types.ProcessSnapshot
	seen      uint64

	status    string
	statusErr bool
	err       error
	width     int
	height    int
}

// NewModel wires the display to its collaborators. fatal may be nil.
func NewModel(st *store.Store, source *dispatch.Channel, ctl Signaller, tuner Tuner, fatal <-chan error) Model {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "regexp"
	ti.CharLimit = 128
	ti.SetValue(st.View().Filter)

	t := table.New(
		table.WithColumns(columns(st.View().Sort, 80)),
		table.WithFocused(true),
		table.WithHeight(20),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240")).BorderBottom(true).Bold(true)
	s.Selected = s.Selected.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57")).Bold(false)
	t.SetStyles(s)

	return Model{store: st, source: source, ctl: ctl, tuner: tuner, fatal: fatal, table: t, filter: ti}
}

// Err is the fatal sampler error that ended the program, if any.
func (m Model) Err() error { return m.err }

func (m Model) Init() tea.Cmd {
	return tea.Batch(tick(), waitFatal(m.fatal))
}

func tick() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func waitFatal(fatal <-chan error) tea.Cmd {
	if fatal == nil {
		return nil
	}
	return func() tea.Msg {
		err, ok := <-fatal
		if !ok {
			return nil
		}
		return fatalMsg{err}
	}
}

func awaitResult(ch <-chan control.Result) tea.Cmd {
	return func() tea.Msg { return controlMsg(<-ch) }
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.table.SetWidth(msg.Width - 2)
		m.table.SetColumns(columns(m.store.View().Sort, msg.Width-2))
		m.fitTable()
		return m, nil

	case tickMsg:
		if m.source != nil {
			m.store.Refresh(m.source)
		}
		if v := m.store.Version(); v != m.seen {
			m.seen = v
			m.syncRows()
			m.fitTable()
		}
		return m, tick()

	case fatalMsg:
		m.err = msg.err
		return m, tea.Quit

	case controlMsg:
		r := control.Result(msg)
		m.setStatus(r.String(), r.Outcome != control.Delivered)
		return m, nil

	case tea.KeyMsg:
		if m.confirm != nil {
			return m.handleConfirm(msg)
		}
		if m.filtering {
			return m.updateFilter(msg)
		}
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "s", "f6":
		key := m.store.CycleSort()
		m.table.SetColumns(columns(key, m.width-2))
		m.syncRows()
		return m, nil
	case "/":
		m.filtering = true
		cmd := m.filter.Focus()
		return m, cmd
	case "esc":
		m.filter.SetValue("")
		m.store.SetFilter("")
		m.syncRows()
		return m, nil
	case "x":
		return m.askSignal(unix.SIGTERM), nil
	case "X":
		return m.askSignal(unix.SIGKILL), nil
	case "n", "N":
		p, ok := m.selected()
		if !ok || m.ctl == nil {
			return m, nil
		}
		delta := 1
		if msg.String() == "N" {
			delta = -1
		}
		nice := min(max(int(p.Nice)+delta, control.MinNice), control.MaxNice)
		return m, awaitResult(m.ctl.Renice(p.PID, nice))
	case "+", "=":
		return m.adjustInterval(intervalStep), nil
	case "-":
		return m.adjustInterval(-intervalStep), nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+c":
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.store.SetFilter("")
		m.syncRows()
		return m, nil
	case "enter":
		m.filtering = false
		m.filter.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.store.SetFilter(m.filter.Value())
	m.syncRows()
	return m, cmd
}

func (m Model) askSignal(sig unix.Signal) Model {
	p, ok := m.selected()
	if !ok || m.ctl == nil {
		return m
	}
	m.confirm = &pendingSignal{pid: p.PID, name: p.Name, sig: sig}
	return m
}

func (m Model) handleConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	pending := m.confirm
	m.confirm = nil
	switch msg.String() {
	case "y", "Y":
		return m, awaitResult(m.ctl.Signal(pending.pid, pending.sig))
	case "ctrl+c":
		return m, tea.Quit
	}
	m.setStatus(fmt.Sprintf("%s to pid %d cancelled", unix.SignalName(pending.sig), pending.pid), false)
	return m, nil
}

func (m Model) adjustInterval(step time.Duration) Model {
	if m.tuner == nil {
		return m
	}
	st := m.tuner.Settings()
	st.Interval = max(st.Interval+step, sampler.MinInterval)
	m.tuner.Reconfigure(st)
	m.setStatus(fmt.Sprintf("interval %s from next cycle", m.tuner.Settings().Interval), false)
	return m
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status, m.statusErr = text, isErr
}

func (m *Model) selected() (types.ProcessSnapshot, bool) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.rows) {
		return types.ProcessSnapshot{}, false
	}
	return m.rows[idx], true
}

func (m *Model) syncRows() {
	m.rows = m.store.Rows()
	rows := make([]table.Row, 0, len(m.rows))
	for _, p := range m.rows {
		status := p.Status.Code()
		if p.Stale {
			status += "*"
		}
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", p.PID),
			p.User,
			fmt.Sprintf("%d", p.Nice),
			status,
			fmt.Sprintf("%.1f", p.CPUPercent),
			fmt.Sprintf("%.1f", p.MemPercent),
			strings.TrimSpace(FormatBytes(p.RSSBytes)),
			fmt.Sprintf("%d", p.Threads),
			p.Cmdline,
		})
	}
	m.table.SetRows(rows)
	if c := m.table.Cursor(); c >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}
}

func columns(key types.SortKey, width int) []table.Column {
	mark := func(title string, k types.SortKey) string {
		if k == key {
			return title + "▼"
		}
		return title
	}
	cols := []table.Column{
		{Title: mark("PID", types.SortByPID), Width: 8},
		{Title: mark("USER", types.SortByUser), Width: 10},
		{Title: "NI", Width: 4},
		{Title: "S", Width: 3},
		{Title: mark("CPU%", types.SortByCPU), Width: 7},
		{Title: mark("MEM%", types.SortByMem), Width: 7},
		{Title: "RES", Width: 7},
		{Title: "THR", Width: 5},
	}
	used := 0
	for _, c := range cols {
		used += c.Width + 2
	}
	return append(cols, table.Column{Title: "COMMAND", Width: max(width-used, 20)})
}

// fitTable sizes the table to the space left under the header, which grows
// from one line to a line per core once the first batch arrives.
func (m *Model) fitTable() {
	if m.height <= 0 {
		return
	}
	m.table.SetHeight(max(m.height-m.headerLines()-headerReserved, 3))
}

func (m Model) headerLines() int {
	b := m.store.Current()
	if b == nil {
		return 1
	}
	return len(b.PerCore) + 4
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString(baseStyle.Render(m.table.View()))
	b.WriteString("\n")

	switch {
	case m.confirm != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("send %s to pid %d (%s)? [y/N]",
			unix.SignalName(m.confirm.sig), m.confirm.pid, m.confirm.name)))
	case m.filtering:
		b.WriteString(m.filter.View())
	case m.err != nil:
		b.WriteString(errorStyle.Render("sampler stopped: " + m.err.Error()))
	case m.status != "":
		if m.statusErr {
			b.WriteString(errorStyle.Render(m.status))
		} else {
			b.WriteString(successStyle.Render(m.status))
		}
	case m.store.View().Filter != "":
		b.WriteString(helpStyle.Render(fmt.Sprintf("filter: %s", m.store.View().Filter)))
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("q quit  s/F6 sort  / filter  esc clear  x TERM  X KILL  n/N nice  +/- interval"))
	return b.String()
}

func (m Model) header() string {
	batch := m.store.Current()
	if batch == nil {
		return titleStyle.Render("proctop") + "  waiting for first sample...\n"
	}
	var b strings.Builder
	view := m.store.View()
	fmt.Fprintf(&b, "%s  sort %s  tasks %d, %d running\n",
		titleStyle.Render("proctop"), view.Sort, batch.Stats.Tasks, batch.Stats.Running)
	for i, pct := range batch.PerCore {
		spark := ""
		if i < len(batch.History) {
			spark = Sparkline(batch.History[i], 30)
		}
		fmt.Fprintf(&b, "CPU%-2d [%s] %5.1f%% %s\n", i, coreStyle.Render(Bar(pct, 20)), pct, spark)
	}
	sys := batch.System
	fmt.Fprintf(&b, "Mem   [%s] %s/%s\n", memStyle.Render(Bar(sys.MemPercent(), 20)),
		strings.TrimSpace(FormatBytes(sys.MemUsed())), strings.TrimSpace(FormatBytes(sys.MemTotal)))
	fmt.Fprintf(&b, "Swp   [%s] %s/%s\n", swapStyle.Render(Bar(sys.SwapPercent(), 20)),
		strings.TrimSpace(FormatBytes(sys.SwapUsed)), strings.TrimSpace(FormatBytes(sys.SwapTotal)))
	fmt.Fprintf(&b, "Load average: %.2f %.2f %.2f  Uptime: %s\n",
		sys.Load1, sys.Load5, sys.Load15, FormatUptime(sys.UptimeSeconds))
	return b.String()
}
