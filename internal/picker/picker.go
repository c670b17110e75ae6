// Package picker is a small terminal chooser for folders and photos.
package picker

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nikbrunner/gorg/internal/model"
	"github.com/nikbrunner/gorg/internal/search"
)

var (
	accent = lipgloss.AdaptiveColor{Light: "#4A7070", Dark: "#5F8787"}
	subtle = lipgloss.AdaptiveColor{Light: "#888888", Dark: "#606060"}

	selectedStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true)

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#505050", Dark: "#A0A0A0"})

	detailStyle = lipgloss.NewStyle().
			Foreground(subtle).
			Italic(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true).
			MarginBottom(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(subtle)
)

// Item is one choosable row.
type Item struct {
	Title  string
	Detail string
	Value  string
}

// Picker lets the user pick one item, or mark several.
type Picker struct {
	title     string
	items     []Item
	keys      KeyMap
	cursor    int
	offset    int
	marked    map[int]bool
	multi     bool
	selected  bool
	cancelled bool
	width     int
	height    int
}

// New creates a single-choice Picker.
func New(title string, items []Item) Picker {
	return Picker{
		title:  title,
		items:  items,
		keys:   DefaultKeyMap(),
		marked: map[int]bool{},
		width:  80,
		height: 24,
	}
}

// NewMulti creates a Picker where several items can be marked.
func NewMulti(title string, items []Item) Picker {
	p := New(title, items)
	p.multi = true
	return p
}

// FolderItems turns a folder listing into items valued by folder name.
func FolderItems(folders []model.Folder) []Item {
	items := make([]Item, 0, len(folders))
	for _, f := range folders {
		items = append(items, Item{
			Title:  f.Name,
			Detail: fmt.Sprintf("%d photos", f.PhotoCount),
			Value:  f.Name,
		})
	}
	return items
}

// PhotoItems turns photos into items valued by identifier.
func PhotoItems(photos []model.Photo) []Item {
	items := make([]Item, 0, len(photos))
	for _, p := range photos {
		items = append(items, photoItem(p))
	}
	return items
}

// ResultItems turns fuzzy search results into items valued by identifier.
func ResultItems(results []search.SearchResult) []Item {
	items := make([]Item, 0, len(results))
	for _, r := range results {
		items = append(items, photoItem(*r.Photo))
	}
	return items
}

func photoItem(p model.Photo) Item {
	detail := p.Date
	if p.Tags != "" {
		detail += "  " + p.Tags
	}
	if p.Favorite {
		detail += "  ★"
	}
	title := p.Name()
	if p.Folder != "" {
		title = p.Folder + "/" + title
	}
	return Item{Title: title, Detail: detail, Value: p.ID}
}

// Init implements tea.Model.
func (p Picker) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (p Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width = msg.Width
		p.height = msg.Height
		p.scroll()
		return p, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, p.keys.Cancel):
			p.cancelled = true
			return p, tea.Quit

		case key.Matches(msg, p.keys.Select):
			if len(p.items) == 0 {
				return p, nil
			}
			p.selected = true
			return p, tea.Quit

		case key.Matches(msg, p.keys.Down):
			if p.cursor < len(p.items)-1 {
				p.cursor++
			}

		case key.Matches(msg, p.keys.Up):
			if p.cursor > 0 {
				p.cursor--
			}

		case key.Matches(msg, p.keys.Top):
			p.cursor = 0

		case key.Matches(msg, p.keys.Bottom):
			p.cursor = max(len(p.items)-1, 0)

		case key.Matches(msg, p.keys.Toggle):
			if p.multi && len(p.items) > 0 {
				if p.marked[p.cursor] {
					delete(p.marked, p.cursor)
				} else {
					p.marked[p.cursor] = true
				}
			}
		}
		p.scroll()
	}

	return p, nil
}

// visibleRows is the number of items that fit below the header and above
// the footer; every item takes two lines.
func (p Picker) visibleRows() int {
	return max((p.height-5)/2, 1)
}

func (p *Picker) scroll() {
	rows := p.visibleRows()
	if p.cursor < p.offset {
		p.offset = p.cursor
	}
	if p.cursor >= p.offset+rows {
		p.offset = p.cursor - rows + 1
	}
}

// View implements tea.Model.
func (p Picker) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("%s (%d)", p.title, len(p.items))))
	b.WriteString("\n\n")

	if len(p.items) == 0 {
		b.WriteString(detailStyle.Render("  nothing to choose from"))
		b.WriteString("\n")
	}

	end := min(p.offset+p.visibleRows(), len(p.items))
	for i := p.offset; i < end; i++ {
		item := p.items[i]
		cursor := "  "
		style := normalStyle
		if i == p.cursor {
			cursor = "> "
			style = selectedStyle
		}
		mark := ""
		if p.multi {
			mark = "[ ] "
			if p.marked[i] {
				mark = "[x] "
			}
		}

		fmt.Fprintf(&b, "%s%s%s\n", cursor, mark, style.Render(item.Title))
		fmt.Fprintf(&b, "   %s\n", detailStyle.Render(item.Detail))
	}

	b.WriteString("\n")
	var hints []string
	for _, k := range p.keys.ShortHelp() {
		h := k.Help()
		if h.Key == p.keys.Toggle.Help().Key && !p.multi {
			continue
		}
		hints = append(hints, h.Key+": "+h.Desc)
	}
	b.WriteString(helpStyle.Render(strings.Join(hints, "  ")))

	return b.String()
}

// Selected returns the chosen values: the marked items in list order, or
// the item under the cursor when nothing is marked. It returns nil when
// the picker was cancelled.
func (p Picker) Selected() []string {
	if p.cancelled || !p.selected {
		return nil
	}
	var values []string
	for i, item := range p.items {
		if p.marked[i] {
			values = append(values, item.Value)
		}
	}
	if len(values) == 0 && p.cursor < len(p.items) {
		values = []string{p.items[p.cursor].Value}
	}
	return values
}

// Cancelled returns true if the user cancelled the selection.
func (p Picker) Cancelled() bool {
	return p.cancelled
}

// Run shows the picker on the terminal and returns the selection.
func Run(p Picker) ([]string, error) {
	final, err := tea.NewProgram(p).Run()
	if err != nil {
		return nil, err
	}
	return final.(Picker).Selected(), nil
}
