// Package tui provides the BubbleTea-based campaign monitor.
package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/config"
	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/model"
)

// Mode represents the current UI mode.
type Mode int

const (
	ModeList Mode = iota
	ModeDetail
	ModeSearch
	ModeHelp
)

// reasonCycle is the order the reason filter steps through. Empty shows all.
var reasonCycle = []model.Reason{
	"",
	model.ReasonDisplayed,
	model.ReasonRejected,
	model.ReasonUnavailable,
	model.ReasonInterrupted,
	model.ReasonIneligible,
	model.ReasonSkipped,
}

var kindCycle = []model.AttemptKind{"", model.AttemptKindMessage, model.AttemptKindTooltip}

// Model is the main TUI model.
type Model struct {
	// Configuration
	cfg    *config.Config
	source Source

	// Current mode
	mode Mode

	// Components
	list        list.Model
	viewport    viewport.Model
	searchInput textinput.Model
	help        help.Model

	// State
	attempts     []model.Attempt
	campaigns    map[string]model.Campaign
	counts       map[model.Reason]int
	selected     *attemptItem
	searchQuery  string
	reasonFilter int // index into reasonCycle
	kindFilter   int // index into kindCycle
	width        int
	height       int
	ready        bool
	lastRefresh  time.Time

	// Key bindings
	keys KeyMap

	// Status message
	statusMsg string
	statusErr bool
}

// attemptItem wraps an attempt for the list component.
type attemptItem struct {
	attempt  model.Attempt
	campaign *model.Campaign
}

func (i attemptItem) Title() string {
	if i.campaign != nil {
		if title := model.StripContexts(i.campaign.Data.Title); title != "" {
			return title
		}
	}
	return i.attempt.CampaignID
}

func (i attemptItem) Description() string {
	desc := fmt.Sprintf("[%s] %s - %s", i.attempt.Reason, i.attempt.Kind, humanize.Time(i.attempt.CreatedAt))
	if i.attempt.Detail != "" {
		desc += " - " + i.attempt.Detail
	}
	return desc
}

func (i attemptItem) FilterValue() string {
	return i.Title() + " " + i.attempt.CampaignID + " " + i.attempt.Detail
}

// reasonColor is the list color for an outcome.
func reasonColor(r model.Reason) lipgloss.Color {
	switch r {
	case model.ReasonDisplayed:
		return lipgloss.Color("10")
	case model.ReasonRejected, model.ReasonIneligible:
		return lipgloss.Color("11")
	case model.ReasonUnavailable, model.ReasonInterrupted:
		return lipgloss.Color("9")
	default:
		return lipgloss.Color("8")
	}
}

// attemptDelegate colors each attempt by its outcome.
type attemptDelegate struct {
	list.DefaultDelegate
}

func newAttemptDelegate() attemptDelegate {
	return attemptDelegate{DefaultDelegate: list.NewDefaultDelegate()}
}

// Render renders a list item with the outcome color on its description.
func (d attemptDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ai, ok := item.(attemptItem)
	if !ok {
		d.DefaultDelegate.Render(w, m, index, item)
		return
	}

	titleStyle := d.DefaultDelegate.Styles.NormalTitle
	descStyle := d.DefaultDelegate.Styles.NormalDesc
	if index == m.Index() {
		titleStyle = d.DefaultDelegate.Styles.SelectedTitle
		descStyle = d.DefaultDelegate.Styles.SelectedDesc
	}
	descStyle = descStyle.Foreground(reasonColor(ai.attempt.Reason))

	itemWidth := m.Width() - d.DefaultDelegate.Styles.NormalTitle.GetHorizontalPadding()

	title := ai.Title()
	if ai.campaign != nil && ai.campaign.IsOptedOut {
		title = "[opted out] " + title
	}
	desc := ai.Description()
	title = truncate(title, itemWidth)
	desc = truncate(desc, itemWidth)

	fmt.Fprint(w, titleStyle.Render(title))
	fmt.Fprint(w, "\n")
	fmt.Fprint(w, descStyle.Render(desc))
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}

// New creates a new monitor model.
func New(cfg *config.Config, source Source) Model {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	l := list.New(nil, newAttemptDelegate(), 0, 0)
	l.Title = "Campaign Attempts"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	searchInput := textinput.New()
	searchInput.Placeholder = "Search..."
	searchInput.CharLimit = 100

	return Model{
		cfg:         cfg,
		source:      source,
		mode:        ModeList,
		list:        l,
		searchInput: searchInput,
		help:        help.New(),
		keys:        DefaultKeyMap(),
		campaigns:   make(map[string]model.Campaign),
	}
}

// Init loads the first snapshot and starts the refresh ticker.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load, m.tick())
}

type snapshotMsg struct {
	snap Snapshot
	err  error
	at   time.Time
}

type tickMsg struct{}

// load fetches a snapshot from the source.
func (m Model) load() tea.Msg {
	if m.source == nil {
		return snapshotMsg{at: time.Now()}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := m.source.Snapshot(ctx)
	return snapshotMsg{snap: snap, err: err, at: time.Now()}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.cfg.Monitor.RefreshInterval.Duration(), func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

		m.list.SetSize(msg.Width, msg.Height-3)
		m.viewport = viewport.New(msg.Width, msg.Height-4)
		m.viewport.YPosition = 2
		return m, nil

	case snapshotMsg:
		m.applySnapshot(msg)
		if msg.err != nil {
			return m, func() tea.Msg {
				return statusMsg{text: "Refresh failed: " + msg.err.Error(), isErr: true}
			}
		}
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.load, m.tick())

	case statusMsg:
		m.statusMsg = msg.text
		m.statusErr = msg.isErr
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg {
			return clearStatusMsg{}
		})

	case clearStatusMsg:
		m.statusMsg = ""
		m.statusErr = false
		return m, nil

	case copyResultMsg:
		if msg.err != nil {
			return m, func() tea.Msg {
				return statusMsg{text: "Copy failed: " + msg.err.Error(), isErr: true}
			}
		}
		return m, func() tea.Msg {
			return statusMsg{text: "Copied to clipboard"}
		}
	}

	switch m.mode {
	case ModeList:
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		cmds = append(cmds, cmd)
	case ModeDetail:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	case ModeSearch:
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

type statusMsg struct {
	text  string
	isErr bool
}

type clearStatusMsg struct{}

type copyResultMsg struct {
	err error
}

// applySnapshot replaces the displayed data, keeping what failed to load.
func (m *Model) applySnapshot(msg snapshotMsg) {
	if msg.snap.Attempts != nil || msg.err == nil {
		m.attempts = msg.snap.Attempts
	}
	if msg.snap.Campaigns != nil || msg.err == nil {
		m.campaigns = make(map[string]model.Campaign, len(msg.snap.Campaigns))
		for _, c := range msg.snap.Campaigns {
			m.campaigns[c.ID] = c
		}
	}
	if msg.snap.Counts != nil || msg.err == nil {
		m.counts = msg.snap.Counts
	}
	m.lastRefresh = msg.at
	m.list.SetItems(m.buildListItems())
	if m.selected != nil {
		if c, ok := m.campaigns[m.selected.attempt.CampaignID]; ok {
			m.selected.campaign = &c
			m.viewport.SetContent(m.renderDetail(*m.selected))
		}
	}
}

// handleKey handles key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Global keys; in search mode only ctrl+c quits.
	if m.mode != ModeSearch || msg.Type == tea.KeyCtrlC {
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			if m.mode == ModeHelp {
				m.mode = ModeList
			} else {
				m.mode = ModeHelp
			}
			return m, nil
		}
	}

	switch m.mode {
	case ModeList:
		return m.handleListKey(msg)
	case ModeDetail:
		return m.handleDetailKey(msg)
	case ModeSearch:
		return m.handleSearchKey(msg)
	case ModeHelp:
		if key.Matches(msg, m.keys.Back) {
			m.mode = ModeList
		}
		return m, nil
	}

	return m, nil
}

// handleListKey handles keys in list mode.
func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Open):
		m.openSelected()
		return m, nil

	case key.Matches(msg, m.keys.CopyID):
		if item, ok := m.list.SelectedItem().(attemptItem); ok {
			return m, m.copyToClipboard(item.attempt.CampaignID)
		}
		return m, nil

	case key.Matches(msg, m.keys.CopyJSON):
		data, err := json.MarshalIndent(m.visibleAttempts(), "", "  ")
		if err != nil {
			return m, func() tea.Msg {
				return statusMsg{text: "Failed to marshal JSON: " + err.Error(), isErr: true}
			}
		}
		return m, m.copyToClipboard(string(data))

	case key.Matches(msg, m.keys.CopyYAML):
		data, err := yaml.Marshal(m.visibleAttempts())
		if err != nil {
			return m, func() tea.Msg {
				return statusMsg{text: "Failed to marshal YAML: " + err.Error(), isErr: true}
			}
		}
		return m, m.copyToClipboard(string(data))

	case key.Matches(msg, m.keys.CycleReason):
		m.reasonFilter = (m.reasonFilter + 1) % len(reasonCycle)
		m.list.SetItems(m.buildListItems())
		return m, func() tea.Msg {
			return statusMsg{text: "Reason: " + filterLabel(string(reasonCycle[m.reasonFilter]))}
		}

	case key.Matches(msg, m.keys.CycleKind):
		m.kindFilter = (m.kindFilter + 1) % len(kindCycle)
		m.list.SetItems(m.buildListItems())
		return m, func() tea.Msg {
			return statusMsg{text: "Kind: " + filterLabel(string(kindCycle[m.kindFilter]))}
		}

	case key.Matches(msg, m.keys.Search):
		m.searchInput.SetValue("")
		m.searchQuery = ""
		m.list.SetItems(m.buildListItems())
		m.mode = ModeSearch
		m.searchInput.Focus()
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Refresh):
		return m, m.load
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func filterLabel(v string) string {
	if v == "" {
		return "all"
	}
	return v
}

// handleDetailKey handles keys in detail mode.
func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.mode = ModeList
		m.selected = nil
		return m, nil

	case key.Matches(msg, m.keys.CopyID):
		if m.selected != nil {
			return m, m.copyToClipboard(m.selected.attempt.CampaignID)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// handleSearchKey handles keys in search mode.
func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = ModeList
		m.searchInput.Blur()
		m.searchInput.SetValue("")
		m.searchQuery = ""
		m.list.SetItems(m.buildListItems())
		return m, nil

	case tea.KeyEnter:
		m.searchInput.Blur()
		m.openSelected()
		return m, nil

	case tea.KeyUp, tea.KeyDown:
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)

	// Filter live on every keystroke.
	m.searchQuery = m.searchInput.Value()
	m.list.SetItems(m.buildListItems())

	return m, cmd
}

func (m *Model) openSelected() {
	item, ok := m.list.SelectedItem().(attemptItem)
	if !ok {
		return
	}
	m.selected = &item
	m.mode = ModeDetail
	m.viewport.SetContent(m.renderDetail(item))
	m.viewport.GotoTop()
}

// buildListItems creates list items from the current attempts.
func (m Model) buildListItems() []list.Item {
	reason := reasonCycle[m.reasonFilter]
	kind := kindCycle[m.kindFilter]
	query := strings.ToLower(m.searchQuery)

	var items []list.Item
	for _, a := range m.attempts {
		if reason != "" && a.Reason != reason {
			continue
		}
		if kind != "" && a.Kind != kind {
			continue
		}
		item := attemptItem{attempt: a}
		if c, ok := m.campaigns[a.CampaignID]; ok {
			item.campaign = &c
		}
		if query != "" && !strings.Contains(strings.ToLower(item.FilterValue()), query) {
			continue
		}
		items = append(items, item)
	}
	return items
}

func (m Model) visibleAttempts() []model.Attempt {
	items := m.list.Items()
	out := make([]model.Attempt, 0, len(items))
	for _, item := range items {
		if ai, ok := item.(attemptItem); ok {
			out = append(out, ai.attempt)
		}
	}
	return out
}

// renderDetail renders the detail view for an attempt.
func (m Model) renderDetail(item attemptItem) string {
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12"))
	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8"))

	a := item.attempt
	var b strings.Builder
	b.WriteString(headerStyle.Render(item.Title()) + "\n\n")

	b.WriteString(labelStyle.Render("Campaign: ") + a.CampaignID + "\n")
	b.WriteString(labelStyle.Render("Kind: ") + string(a.Kind) + "\n")
	b.WriteString(labelStyle.Render("Outcome: ") +
		lipgloss.NewStyle().Foreground(reasonColor(a.Reason)).Render(string(a.Reason)) + "\n")
	if a.Detail != "" {
		b.WriteString(labelStyle.Render("Detail: ") + a.Detail + "\n")
	}
	b.WriteString(labelStyle.Render("Time: ") +
		a.CreatedAt.Local().Format(time.DateTime) + " (" + humanize.Time(a.CreatedAt) + ")\n")

	c := item.campaign
	if c == nil {
		b.WriteString("\n" + labelStyle.Render("Campaign is no longer defined.") + "\n")
		return b.String()
	}

	b.WriteString("\n" + labelStyle.Render("Definition:") + "\n")
	b.WriteString(fmt.Sprintf("  Type: %s\n", c.Data.Type))
	b.WriteString(fmt.Sprintf("  Impressions left: %d of %d\n", c.ImpressionsLeft, c.Data.MaxImpressions))
	if contexts := c.Contexts(); len(contexts) > 0 {
		b.WriteString("  Contexts: " + strings.Join(contexts, ", ") + "\n")
	}
	if c.IsOptedOut {
		b.WriteString("  Opted out\n")
	}
	if c.Data.IsTest {
		b.WriteString("  Test campaign\n")
	}
	if t := c.Data.Tooltip; t != nil {
		b.WriteString(fmt.Sprintf("  Anchor: %s (%s)\n", t.UIElementID, t.Position))
		if t.AutoDisappear > 0 {
			b.WriteString(fmt.Sprintf("  Auto-disappear: %ds\n", t.AutoDisappear))
		}
	}
	if c.Data.Body != "" {
		b.WriteString("\n" + labelStyle.Render("Body:") + "\n" + c.Data.Body + "\n")
	}
	return b.String()
}

// copyToClipboard copies text to the system clipboard.
func (m Model) copyToClipboard(text string) tea.Cmd {
	command := m.cfg.Monitor.ClipboardCommand
	return func() tea.Msg {
		return copyResultMsg{err: copyText(text, command)}
	}
}

// View renders the TUI.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	switch m.mode {
	case ModeList:
		return m.viewList()
	case ModeDetail:
		return m.viewDetail()
	case ModeSearch:
		return m.viewSearch()
	case ModeHelp:
		return m.viewHelp()
	default:
		return ""
	}
}

// summaryLine renders the all-time outcome counts.
func (m Model) summaryLine() string {
	if len(m.counts) == 0 {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("no attempts recorded")
	}
	reasons := make([]model.Reason, 0, len(m.counts))
	for r := range m.counts {
		reasons = append(reasons, r)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })

	parts := make([]string, 0, len(reasons))
	for _, r := range reasons {
		style := lipgloss.NewStyle().Foreground(reasonColor(r))
		parts = append(parts, style.Render(fmt.Sprintf("%s %s", r, humanize.Comma(int64(m.counts[r])))))
	}
	line := strings.Join(parts, "  ")
	if !m.lastRefresh.IsZero() {
		line += lipgloss.NewStyle().Foreground(lipgloss.Color("8")).
			Render("  (updated " + humanize.Time(m.lastRefresh) + ")")
	}
	return line
}

func (m Model) viewList() string {
	s := m.summaryLine() + "\n" + m.list.View()

	if m.statusMsg != "" {
		statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
		if m.statusErr {
			statusStyle = statusStyle.Foreground(lipgloss.Color("9"))
		}
		s += "\n" + statusStyle.Render(m.statusMsg)
	} else {
		s += "\n" + m.buildKeybindBar(m.width, "list")
	}
	return s
}

func (m Model) viewDetail() string {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1).Render("Attempt Detail")
	return header + "\n" + m.viewport.View() + "\n" + m.buildKeybindBar(m.width, "detail")
}

func (m Model) viewSearch() string {
	countStr := fmt.Sprintf("(%d matches)", len(m.list.Items()))
	searchBar := "Search: " + m.searchInput.View() + " " +
		lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(countStr)

	return searchBar + "\n" + m.list.View() + "\n" + m.buildKeybindBar(m.width, "search")
}

func (m Model) viewHelp() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		MarginBottom(1)
	sectionStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Width(10)

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Keyboard Shortcuts") + "\n\n")
	for _, section := range m.keys.sections() {
		sb.WriteString(sectionStyle.Render(section.title) + "\n")
		for _, b := range section.bindings {
			h := b.Help()
			sb.WriteString("  " + keyStyle.Render(h.Key) + " " + h.Desc + "\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	return sb.String()
}

// keybind is one entry of the status bar.
type keybind struct {
	key  string
	desc string
}

// buildKeybindBar builds a keybind bar that fits within the given width.
// Binds are listed most important first.
func (m Model) buildKeybindBar(width int, mode string) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

	var binds []keybind
	switch mode {
	case "list":
		binds = []keybind{
			{"q", "quit"},
			{"enter", "view"},
			{"?", "help"},
			{"/", "search"},
			{"f", "reason"},
			{"t", "kind"},
			{"c", "copy id"},
			{"r", "refresh"},
		}
	case "detail":
		binds = []keybind{
			{"q", "quit"},
			{"esc", "back"},
			{"c", "copy id"},
			{"j/k", "scroll"},
		}
	case "search":
		binds = []keybind{
			{"enter", "view"},
			{"esc", "close"},
			{"↑/↓", "navigate"},
		}
	}

	const separator = "  "
	var result string
	plainLen := 0
	for _, b := range binds {
		plain := b.key + " " + b.desc
		next := len([]rune(plain))
		if plainLen > 0 {
			next += len(separator)
		}
		if width > 0 && plainLen+next > width {
			break
		}
		if result != "" {
			result += separator
		}
		result += keyStyle.Render(b.key) + " " + b.desc
		plainLen += next
	}

	return style.Render(result)
}

// RunOptions configures the monitor.
type RunOptions struct {
	Config *config.Config
	Source Source
}

// Run starts the monitor and blocks until the user quits.
func Run(opts RunOptions) error {
	m := New(opts.Config, opts.Source)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
