// Package ui is a terminal browser for archived insight sets.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/pulse/internal/model"
)

// Archive is what the browser reads from.
type Archive interface {
	Browse(f model.ArchiveFilter) []model.ArchivedInsight
	Search(keyword string, category model.Category) []model.ArchivedInsight
}

type mode int

const (
	modeList mode = iota
	modeDetail
	modeSearch
)

// categoryCycle is the order "c" steps through.
var categoryCycle = append([]model.Category{model.CategoryAll}, model.Categories()...)

// Model is the archive browser.
type Model struct {
	archive  Archive
	loc      *time.Location
	limit    int
	records  []model.ArchivedInsight
	cursor   int
	offset   int
	category int // index into categoryCycle
	query    string
	mode     mode

	input  textinput.Model
	detail viewport.Model

	width, height int
}

// New creates a browser over archive. limit caps each listing.
func New(archive Archive, loc *time.Location, limit int) Model {
	if loc == nil {
		loc = time.Local
	}
	ti := textinput.New()
	ti.Placeholder = "keyword"
	ti.Prompt = "/ "
	ti.PromptStyle = statusKey
	ti.CharLimit = 64

	m := Model{
		archive: archive,
		loc:     loc,
		limit:   limit,
		input:   ti,
		detail:  viewport.New(80, 20),
		width:   80,
		height:  24,
	}
	m.reload()
	return m
}

// Run starts the browser on the alternate screen and blocks until quit.
func Run(archive Archive, loc *time.Location, limit int) error {
	_, err := tea.NewProgram(New(archive, loc, limit), tea.WithAltScreen()).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m *Model) reload() {
	cat := categoryCycle[m.category]
	if m.query != "" {
		m.records = m.archive.Search(m.query, cat)
	} else {
		m.records = m.archive.Browse(model.ArchiveFilter{Category: cat, Limit: m.limit})
	}
	m.cursor, m.offset = 0, 0
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.detail.Width = msg.Width
		m.detail.Height = max(msg.Height-3, 1)
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.mode {
		case modeSearch:
			return m.updateSearch(msg)
		case modeDetail:
			return m.updateDetail(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.records)-1 {
			m.cursor++
		}
	case "g", "home":
		m.cursor = 0
	case "G", "end":
		m.cursor = max(len(m.records)-1, 0)
	case "enter":
		if rec, ok := m.Selected(); ok {
			m.detail.SetContent(renderDetail(rec, m.loc, m.width))
			m.detail.GotoTop()
			m.mode = modeDetail
		}
	case "/":
		m.input.SetValue(m.query)
		m.input.CursorEnd()
		m.mode = modeSearch
		return m, m.input.Focus()
	case "c":
		m.category = (m.category + 1) % len(categoryCycle)
		m.reload()
	case "r":
		m.reload()
	case "esc":
		if m.query != "" {
			m.query = ""
			m.reload()
		}
	}
	m.scroll()
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.query = strings.TrimSpace(m.input.Value())
		m.input.Blur()
		m.mode = modeList
		m.reload()
		return m, nil
	case "esc":
		m.input.Blur()
		m.mode = modeList
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc", "backspace", "left", "h":
		m.mode = modeList
		return m, nil
	}
	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

// scroll keeps the cursor inside the visible window.
func (m *Model) scroll() {
	rows := m.listRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}
}

func (m Model) listRows() int {
	return max(m.height-3, 1)
}

// Selected returns the record under the cursor.
func (m Model) Selected() (model.ArchivedInsight, bool) {
	if m.cursor < 0 || m.cursor >= len(m.records) {
		return model.ArchivedInsight{}, false
	}
	return m.records[m.cursor], true
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")

	switch m.mode {
	case modeDetail:
		b.WriteString(m.detail.View())
	default:
		b.WriteString(m.listView())
	}

	b.WriteString("\n")
	if m.mode == modeSearch {
		b.WriteString(m.input.View())
	} else {
		b.WriteString(m.statusLine())
	}
	return b.String()
}

func (m Model) header() string {
	title := "pulse archive · " + categoryCycle[m.category].Label()
	if m.query != "" {
		title += fmt.Sprintf(" · %q", m.query)
	}
	if m.mode == modeDetail {
		if rec, ok := m.Selected(); ok {
			title = fmt.Sprintf("%s · %s", rec.Category.Label(), rec.GeneratedAt.In(m.loc).Format("Mon Jan 2 2006 15:04"))
		}
	}
	return titleStyle.Render(title)
}

func (m Model) listView() string {
	if len(m.records) == 0 {
		if m.query != "" {
			return emptyStyle.Render("No archived insights match " + fmt.Sprintf("%q", m.query) + ". esc clears the search.")
		}
		return emptyStyle.Render("No archived insights yet.")
	}

	end := min(m.offset+m.listRows(), len(m.records))
	lines := make([]string, 0, end-m.offset)
	for i := m.offset; i < end; i++ {
		row := m.row(m.records[i])
		if i == m.cursor {
			lines = append(lines, selectedRow.Render(row))
		} else {
			lines = append(lines, normalRow.Render(row))
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) row(rec model.ArchivedInsight) string {
	theme := ""
	if len(rec.Themes) > 0 {
		theme = rec.Themes[0].Name
	}
	return fmt.Sprintf("%-18s %s  %3d articles  %d themes  %s",
		rec.Category, rec.GeneratedAt.In(m.loc).Format("2006-01-02 15:04"),
		rec.ArticleCount, len(rec.Themes), theme)
}

func (m Model) statusLine() string {
	var keys []string
	hint := func(k, d string) {
		keys = append(keys, statusKey.Render(k)+" "+statusText.Render(d))
	}
	if m.mode == modeDetail {
		hint("esc", "back")
		hint("↑↓", "scroll")
	} else {
		hint("enter", "open")
		hint("/", "search")
		hint("c", "category")
		hint("r", "reload")
	}
	hint("q", "quit")
	left := strings.Join(keys, "  ")
	right := statusText.Render(fmt.Sprintf("%d records", len(m.records)))
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	return statusBar.Render(left + strings.Repeat(" ", gap) + right)
}

// renderDetail formats one record for the detail viewport.
func renderDetail(rec model.ArchivedInsight, loc *time.Location, width int) string {
	var b strings.Builder
	wrap := lipgloss.NewStyle().Width(max(width-2, 20))

	fmt.Fprintf(&b, "%s %d articles, %s to %s\n",
		categoryBadge.Render(string(rec.Category)), rec.ArticleCount,
		rec.DateRangeStart.In(loc).Format("Jan 2"), rec.DateRangeEnd.In(loc).Format("Jan 2"))
	if rec.Fallback {
		b.WriteString(fallbackBadge.Render("fallback: "+rec.Message) + "\n")
	}

	if len(rec.RecommendedActions) > 0 {
		b.WriteString(themeHeader.Render("Recommended actions") + "\n")
		for _, a := range rec.RecommendedActions {
			line := "• " + a.Action
			if a.Rationale != "" {
				line += " (" + a.Rationale + ")"
			}
			b.WriteString(wrap.Render(line) + "\n")
		}
	}

	for _, th := range rec.Themes {
		b.WriteString(themeHeader.Render(strings.TrimSpace(th.Icon+" "+th.Name)) + "\n")
		for _, in := range th.Insights {
			b.WriteString(wrap.Render("• "+in.Text) + "\n")
			for _, a := range in.Articles {
				b.WriteString(articleLine.Render(a.Source+": "+a.Title) + "\n")
			}
		}
		for _, ac := range th.Actions {
			b.WriteString(wrap.Render("→ "+ac.Action) + "\n")
		}
	}
	return b.String()
}
