package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestBuildModel_ProgressUpdates(t *testing.T) {
	model := NewBuildModel("/usr/bin/zig")

	updated, _ := model.Update(ProgressMsg("semantic analysis"))
	m := updated.(BuildModel)

	view := m.View()
	if !strings.Contains(view, "semantic analysis") {
		t.Errorf("view does not show progress:\n%s", view)
	}
	if !strings.Contains(view, "/usr/bin/zig") {
		t.Errorf("view does not show compiler path:\n%s", view)
	}
}

func TestBuildModel_DoneFailure(t *testing.T) {
	model := NewBuildModel("/usr/bin/zig")

	updated, cmd := model.Update(DoneMsg{Summary: "main.zig:1:1: error: oops", Failed: true})
	m := updated.(BuildModel)

	if cmd == nil {
		t.Error("DoneMsg should quit the program")
	}
	view := m.View()
	if !strings.Contains(view, "build failed") {
		t.Errorf("view does not show failure state:\n%s", view)
	}
	if !strings.Contains(view, "error: oops") {
		t.Errorf("view does not include summary:\n%s", view)
	}
}

func TestBuildModel_DoneSuccess(t *testing.T) {
	model := NewBuildModel("/usr/bin/zig")

	updated, _ := model.Update(DoneMsg{Summary: "zig-out/bin/app"})
	m := updated.(BuildModel)

	view := m.View()
	if !strings.Contains(view, "build succeeded") {
		t.Errorf("view does not show success state:\n%s", view)
	}
}

func TestBuildModel_QuitKey(t *testing.T) {
	model := NewBuildModel("/usr/bin/zig")

	updated, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	m := updated.(BuildModel)

	if cmd == nil {
		t.Error("q should quit")
	}
	if !m.Detached() {
		t.Error("Detached should report true after quit")
	}
	if m.View() != "" {
		t.Error("view should be empty after quitting")
	}
}
