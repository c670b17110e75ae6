package picker

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nikbrunner/gorg/internal/model"
	"github.com/nikbrunner/gorg/internal/search"
)

func sampleItems() []Item {
	return []Item{
		{Title: "Trip", Detail: "3 photos", Value: "Trip"},
		{Title: "Work", Detail: "0 photos", Value: "Work"},
		{Title: "Zoo", Detail: "1 photos", Value: "Zoo"},
	}
}

func press(p Picker, msg tea.KeyMsg) (Picker, tea.Cmd) {
	m, cmd := p.Update(msg)
	return m.(Picker), cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestPicker_InitialState(t *testing.T) {
	p := New("Folders", sampleItems())

	if p.cursor != 0 {
		t.Errorf("expected cursor at 0, got %d", p.cursor)
	}
	if len(p.items) != 3 {
		t.Errorf("expected 3 items, got %d", len(p.items))
	}
	if p.Selected() != nil {
		t.Error("expected no selection before Enter")
	}
}

func TestPicker_Navigate(t *testing.T) {
	p := New("Folders", sampleItems())

	p, _ = press(p, runes("j"))
	if p.cursor != 1 {
		t.Errorf("expected cursor at 1 after j, got %d", p.cursor)
	}
	p, _ = press(p, tea.KeyMsg{Type: tea.KeyDown})
	if p.cursor != 2 {
		t.Errorf("expected cursor at 2 after down, got %d", p.cursor)
	}
	p, _ = press(p, runes("j"))
	if p.cursor != 2 {
		t.Errorf("expected cursor to stay at 2, got %d", p.cursor)
	}
	p, _ = press(p, runes("k"))
	if p.cursor != 1 {
		t.Errorf("expected cursor at 1 after k, got %d", p.cursor)
	}
	p, _ = press(p, runes("G"))
	if p.cursor != 2 {
		t.Errorf("expected cursor at bottom, got %d", p.cursor)
	}
	p, _ = press(p, runes("g"))
	if p.cursor != 0 {
		t.Errorf("expected cursor at top, got %d", p.cursor)
	}
	p, _ = press(p, tea.KeyMsg{Type: tea.KeyUp})
	if p.cursor != 0 {
		t.Errorf("expected cursor to stay at 0, got %d", p.cursor)
	}
}

func TestPicker_Select(t *testing.T) {
	p := New("Folders", sampleItems())
	p.cursor = 1

	p, cmd := press(p, tea.KeyMsg{Type: tea.KeyEnter})

	if !p.selected {
		t.Error("expected selected to be true after Enter")
	}
	if cmd == nil {
		t.Error("expected quit command after selection")
	}
	got := p.Selected()
	if len(got) != 1 || got[0] != "Work" {
		t.Errorf("expected [Work], got %v", got)
	}
}

func TestPicker_SelectEmptyList(t *testing.T) {
	p := New("Folders", nil)

	p, cmd := press(p, tea.KeyMsg{Type: tea.KeyEnter})

	if cmd != nil {
		t.Error("expected no quit on an empty list")
	}
	if p.Selected() != nil {
		t.Error("expected no selection")
	}
}

func TestPicker_Cancel(t *testing.T) {
	for _, msg := range []tea.KeyMsg{{Type: tea.KeyEsc}, {Type: tea.KeyCtrlC}, runes("q")} {
		p := New("Folders", sampleItems())

		p, cmd := press(p, msg)

		if !p.Cancelled() {
			t.Errorf("%s: expected cancelled", msg)
		}
		if cmd == nil {
			t.Errorf("%s: expected quit command after cancel", msg)
		}
		if p.Selected() != nil {
			t.Errorf("%s: expected nil selection when cancelled", msg)
		}
	}
}

func TestPicker_MultiMark(t *testing.T) {
	p := NewMulti("Photos", sampleItems())

	p, _ = press(p, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	p, _ = press(p, runes("j"))
	p, _ = press(p, runes("j"))
	p, _ = press(p, runes("x"))
	p, _ = press(p, runes("k"))
	p, _ = press(p, runes("x"))
	p, _ = press(p, runes("x")) // unmark Work again
	p, _ = press(p, tea.KeyMsg{Type: tea.KeyEnter})

	got := p.Selected()
	if len(got) != 2 || got[0] != "Trip" || got[1] != "Zoo" {
		t.Errorf("expected [Trip Zoo], got %v", got)
	}
	if !strings.Contains(p.View(), "[x] ") {
		t.Error("expected marked rows in view")
	}
}

func TestPicker_SingleIgnoresMarks(t *testing.T) {
	p := New("Folders", sampleItems())

	p, _ = press(p, runes("x"))
	if len(p.marked) != 0 {
		t.Errorf("expected no marks in single mode, got %v", p.marked)
	}
	if strings.Contains(p.View(), "mark") {
		t.Error("expected no mark hint in single mode")
	}
}

func TestPicker_ScrollsWithCursor(t *testing.T) {
	var items []Item
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		items = append(items, Item{Title: "folder-" + name, Value: name})
	}
	p := New("Folders", items)
	m, _ := p.Update(tea.WindowSizeMsg{Width: 40, Height: 9})
	p = m.(Picker)

	for range 5 {
		p, _ = press(p, runes("j"))
	}

	view := p.View()
	if strings.Contains(view, "folder-a") {
		t.Error("expected first item to be scrolled out of view")
	}
	if !strings.Contains(view, "folder-f") {
		t.Error("expected cursor item to be visible")
	}
}

func TestItems(t *testing.T) {
	folders := FolderItems([]model.Folder{{Name: "Trip", PhotoCount: 2}})
	if folders[0].Value != "Trip" || folders[0].Detail != "2 photos" {
		t.Errorf("unexpected folder item %+v", folders[0])
	}

	photo := model.Photo{ID: "/r/Trip/a.jpg", Tags: "x", Date: "2025-01-01", Favorite: true, Folder: "Trip"}
	photos := PhotoItems([]model.Photo{photo})
	if photos[0].Value != photo.ID || photos[0].Title != "Trip/a.jpg" {
		t.Errorf("unexpected photo item %+v", photos[0])
	}

	results := ResultItems([]search.SearchResult{{Photo: &photo}})
	if results[0] != photos[0] {
		t.Errorf("expected result item %+v to equal photo item %+v", results[0], photos[0])
	}
}
