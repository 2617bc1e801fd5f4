package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/modelgov/govdash/pkg/governance"
	"github.com/modelgov/govdash/pkg/server"
)

var browseTabs = []string{governance.TabAll, "active", "archived", governance.TabCriticalFindings}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	activeTabStyle = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(lipgloss.Color("212"))
	tabStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	labelStyle     = lipgloss.NewStyle().Bold(true).Width(22)
	bandStyles     = map[governance.HealthBand]lipgloss.Style{
		governance.HealthPositive: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		governance.HealthNeutral:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		governance.HealthNegative: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
	tableBorder = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240"))
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse the dashboard interactively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m := newBrowseModel(ctxOrBackground(cmd.Context()), newClient())
		_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
		return err
	},
}

type modelsLoadedMsg struct{ env *modelsEnvelope }

type detailLoadedMsg struct{ detail *server.ModelDetail }

type refreshDoneMsg struct{}

type errMsg struct{ err error }

// browseModel is the bubbletea model of the interactive dashboard: a
// searchable, tabbed table of rows with a detail view per model.
type browseModel struct {
	ctx    context.Context
	client *dashClient

	table  table.Model
	search textinput.Model
	tab    int

	rows     []governance.TableRow
	meta     server.ModelsMetadata
	detail   *server.ModelDetail
	status   string
	err      error
	loading  bool
	quitting bool
}

func newBrowseModel(ctx context.Context, client *dashClient) browseModel {
	t := table.New(
		table.WithColumns(browseColumns()),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).Bold(true)
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	t.SetStyles(styles)

	ti := textinput.New()
	ti.Placeholder = "search model, owner or application type"
	ti.CharLimit = 128
	ti.Prompt = "/ "

	return browseModel{
		ctx:     ctx,
		client:  client,
		table:   t,
		search:  ti,
		loading: true,
	}
}

func browseColumns() []table.Column {
	return []table.Column{
		{Title: "Model", Width: 24},
		{Title: "Ver", Width: 5},
		{Title: "App Version", Width: 12},
		{Title: "App Type", Width: 14},
		{Title: "Service Level", Width: 14},
		{Title: "Status", Width: 10},
		{Title: "Owner", Width: 12},
		{Title: "Evidence", Width: 22},
		{Title: "Risk", Width: 4},
		{Title: "Health", Width: 7},
	}
}

func toTableRows(rows []governance.TableRow) []table.Row {
	out := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, table.Row{
			r.ModelName,
			r.ModelVersion,
			r.ApplicationVersion,
			r.ApplicationType,
			r.ServiceLevel,
			r.Status,
			r.Owner,
			evidenceCell(r),
			r.RiskClass,
			r.Health + "%",
		})
	}
	return out
}

func (m browseModel) Init() tea.Cmd {
	return m.loadModels()
}

func (m browseModel) currentTab() string {
	return browseTabs[m.tab]
}

func (m browseModel) loadModels() tea.Cmd {
	ctx, c, q, tab := m.ctx, m.client, m.search.Value(), m.currentTab()
	return func() tea.Msg {
		env, err := fetchModels(ctx, c, q, tab)
		if err != nil {
			return errMsg{err}
		}
		return modelsLoadedMsg{env}
	}
}

func (m browseModel) loadDetail(key string) tea.Cmd {
	ctx, c := m.ctx, m.client
	return func() tea.Msg {
		d, err := fetchModel(ctx, c, key)
		if err != nil {
			return errMsg{err}
		}
		return detailLoadedMsg{d}
	}
}

func (m browseModel) triggerRefresh() tea.Cmd {
	ctx, c := m.ctx, m.client
	return func() tea.Msg {
		if err := c.postJSON(ctx, "/api/v1/refresh", nil, nil); err != nil {
			return errMsg{err}
		}
		return refreshDoneMsg{}
	}
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case modelsLoadedMsg:
		m.loading = false
		m.err = nil
		m.rows = msg.env.Data
		m.meta = msg.env.Metadata
		m.table.SetRows(toTableRows(m.rows))
		if m.table.Cursor() >= len(m.rows) {
			m.table.SetCursor(0)
		}
		return m, nil

	case detailLoadedMsg:
		m.loading = false
		m.err = nil
		m.detail = msg.detail
		return m, nil

	case refreshDoneMsg:
		m.status = "refreshed"
		return m, m.loadModels()

	case errMsg:
		m.loading = false
		m.err = msg.err
		return m, nil

	case tea.WindowSizeMsg:
		if h := msg.Height - 10; h > 3 {
			m.table.SetHeight(h)
		}
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.quitting = true
			return m, tea.Quit
		}
		if m.search.Focused() {
			return m.updateSearch(msg)
		}
		if m.detail != nil {
			switch msg.String() {
			case "esc", "backspace", "q":
				m.detail = nil
			}
			return m, nil
		}
		switch msg.String() {
		case "q", "esc":
			m.quitting = true
			return m, tea.Quit
		case "/":
			cmd := m.search.Focus()
			return m, cmd
		case "tab":
			m.tab = (m.tab + 1) % len(browseTabs)
			m.loading = true
			return m, m.loadModels()
		case "shift+tab":
			m.tab = (m.tab + len(browseTabs) - 1) % len(browseTabs)
			m.loading = true
			return m, m.loadModels()
		case "r":
			m.status = "refreshing..."
			return m, m.triggerRefresh()
		case "enter":
			if i := m.table.Cursor(); i >= 0 && i < len(m.rows) {
				m.loading = true
				return m, m.loadDetail(m.rows[i].Key)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m browseModel) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.search.Blur()
		m.loading = true
		return m, m.loadModels()
	case tea.KeyEsc:
		m.search.Blur()
		m.search.SetValue("")
		m.loading = true
		return m, m.loadModels()
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m browseModel) View() string {
	if m.quitting {
		return ""
	}
	if m.detail != nil {
		return m.detailView()
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Model Governance Dashboard"))
	b.WriteString("\n\n")
	b.WriteString(m.tabsView())
	b.WriteString("\n")
	b.WriteString(m.search.View())
	b.WriteString("\n")
	b.WriteString(tableBorder.Render(m.table.View()))
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render("error: " + m.err.Error()))
	case m.loading:
		b.WriteString("loading...")
	default:
		b.WriteString(fmt.Sprintf("%d of %d models, source %s", m.meta.Matched, m.meta.Total, m.meta.Source))
		if m.status != "" {
			b.WriteString(" (" + m.status + ")")
		}
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter: details  /: search  tab: next tab  r: refresh  q: quit"))
	return b.String()
}

func (m browseModel) tabsView() string {
	parts := make([]string, len(browseTabs))
	for i, t := range browseTabs {
		label := strings.ToUpper(t[:1]) + t[1:]
		if i == m.tab {
			parts[i] = activeTabStyle.Render(label)
		} else {
			parts[i] = tabStyle.Render(label)
		}
	}
	return strings.Join(parts, "  ")
}

func (m browseModel) detailView() string {
	d := m.detail
	r := d.Row

	field := func(label, value string) string {
		return labelStyle.Render(label) + value + "\n"
	}
	band, ok := bandStyles[d.HealthBand]
	if !ok {
		band = lipgloss.NewStyle()
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s v%s", r.ModelName, r.ModelVersion)))
	b.WriteString("\n\n")
	b.WriteString(field("Owner", fmt.Sprintf("%s (%s)", r.Owner, governance.Initials(r.Owner))))
	b.WriteString(field("Application Version", r.ApplicationVersion))
	b.WriteString(field("Application Type", r.ApplicationType))
	b.WriteString(field("Service Level", r.ServiceLevel))
	b.WriteString(field("Status", r.Status))
	b.WriteString(field("Risk", r.RiskClass+" "+d.RiskDescription))
	b.WriteString(field("Health", band.Render(r.Health+"%")))
	b.WriteString(field("Last Run", r.LastRun))

	b.WriteString("\n" + titleStyle.Render("Bundles") + "\n")
	for _, bs := range d.Bundles {
		b.WriteString(fmt.Sprintf("  %s [%s]\n", bs.Name, bs.State))
	}

	b.WriteString("\n" + titleStyle.Render("Evidence") + "\n")
	if len(d.Evidence) == 0 {
		b.WriteString("  none\n")
	}
	for _, e := range d.Evidence {
		b.WriteString(fmt.Sprintf("  %-18s %s\n", orDash(e.ExternalID), truncate(e.ArtifactContent.String(), 60)))
	}
	for _, f := range d.EvidenceErrors {
		b.WriteString(errorStyle.Render(fmt.Sprintf("  %s: %s", f.BundleName, f.Error())) + "\n")
	}

	b.WriteString("\n" + titleStyle.Render("Policies") + "\n")
	for _, p := range d.Policies {
		resolved := ""
		if p.Policy == nil {
			resolved = " (unresolved)"
		}
		b.WriteString(fmt.Sprintf("  %s%s\n", p.PolicyName, resolved))
	}

	b.WriteString("\n" + helpStyle.Render("esc: back  ctrl+c: quit"))
	return b.String()
}
