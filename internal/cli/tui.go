package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dcltools/netscope/pkg/classify"
	"github.com/dcltools/netscope/pkg/crawl"
	"github.com/dcltools/netscope/pkg/graph"
	"github.com/dcltools/netscope/pkg/observability"
)

// maxMonitorRows bounds the discovery list shown in the monitor.
const maxMonitorRows = 15

// Messages from the crawl hooks into the bubbletea model.

type queryDoneMsg struct {
	endpoint string
	status   string
	peers    int
}

type nodeFoundMsg struct {
	id      string
	moniker string
	role    string
}

type crawlDoneMsg struct {
	nodes     int
	edges     int
	truncated bool
	elapsed   time.Duration
}

type tickMsg time.Time

// monitorHooks forwards crawl events to the bubbletea program.
type monitorHooks struct {
	observability.NoopCrawlHooks
	p *tea.Program
}

func (h monitorHooks) OnQueryComplete(_ context.Context, endpoint, status string, peers int, _ time.Duration, _ error) {
	h.p.Send(queryDoneMsg{endpoint: endpoint, status: status, peers: peers})
}

func (h monitorHooks) OnNodeDiscovered(_ context.Context, id, moniker, role string) {
	h.p.Send(nodeFoundMsg{id: id, moniker: moniker, role: role})
}

func (h monitorHooks) OnCrawlComplete(_ context.Context, nodes, edges int, truncated bool, elapsed time.Duration) {
	h.p.Send(crawlDoneMsg{nodes: nodes, edges: edges, truncated: truncated, elapsed: elapsed})
}

// discoveredRow is one line of the monitor's node list.
type discoveredRow struct {
	moniker string
	role    string
}

// monitorModel is the bubbletea model for the live crawl view.
type monitorModel struct {
	start     time.Time
	elapsed   time.Duration
	queried   int
	found     int
	rows      []discoveredRow
	lastQuery string
	done      bool
	truncated bool
	nodes     int
	edges     int
}

func newMonitorModel() monitorModel {
	return monitorModel{start: time.Now()}
}

func (m monitorModel) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.elapsed = time.Since(m.start)
		return m, tick()
	case queryDoneMsg:
		m.queried++
		m.lastQuery = fmt.Sprintf("%s (%s)", msg.endpoint, msg.status)
	case nodeFoundMsg:
		m.found++
		name := msg.moniker
		if name == "" {
			name = msg.id
		}
		m.rows = append(m.rows, discoveredRow{moniker: name, role: msg.role})
		if len(m.rows) > maxMonitorRows {
			m.rows = m.rows[len(m.rows)-maxMonitorRows:]
		}
	case crawlDoneMsg:
		m.done = true
		m.truncated = msg.truncated
		m.nodes = msg.nodes
		m.edges = msg.edges
		m.elapsed = msg.elapsed
		return m, tea.Quit
	}
	return m, nil
}

func (m monitorModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Network Crawl"))
	b.WriteString("\n")
	b.WriteString(StyleDim.Render(fmt.Sprintf("elapsed %s · %d queried · %d discovered",
		m.elapsed.Round(time.Second), m.queried, m.found)))
	b.WriteString("\n\n")

	for _, row := range m.rows {
		b.WriteString("  " + StyleValue.Render(row.moniker))
		b.WriteString("  " + renderRole(classify.Role(row.role)))
		b.WriteString("\n")
	}

	if m.lastQuery != "" && !m.done {
		b.WriteString("\n")
		b.WriteString(StyleDim.Render("querying " + m.lastQuery))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(StyleDim.Render("q to quit"))
	b.WriteString("\n")
	return b.String()
}

// runCrawlMonitor runs a crawl with a live terminal view. The crawl
// itself runs in a goroutine; the view quits when the crawl completes
// or the user bails out.
func runCrawlMonitor(ctx context.Context, crawler *crawl.Crawler, seeds []string, opts ...tea.ProgramOption) (*graph.Graph, error) {
	p := tea.NewProgram(newMonitorModel(), append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)...)

	observability.SetCrawlHooks(monitorHooks{p: p})
	defer observability.SetCrawlHooks(nil)

	// Bubbletea consumes ctrl+c as a key event, so the signal context
	// never fires here. Cancelling after the view exits stops the crawl
	// when the user bails out; it returns the partial graph marked
	// stopped.
	crawlCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		g   *graph.Graph
		err error
	}
	res := make(chan outcome, 1)
	go func() {
		g, err := crawler.Run(crawlCtx, seeds)
		res <- outcome{g: g, err: err}
		p.Send(crawlDoneMsg{})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-res
		return nil, err
	}
	cancel()
	out := <-res
	return out.g, out.err
}
