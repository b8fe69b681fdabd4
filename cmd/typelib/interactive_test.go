package main

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func keyMsg(s string) tea.KeyMsg {
	if len(s) == 1 {
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	panic("unknown key " + s)
}

// Keys pressed before the document finishes loading must not reach the
// registry.
func TestBrowserKeysBeforeLoad(t *testing.T) {
	m := newBrowserModel("fixture.tlb", "tlb")

	var model tea.Model = m
	for _, k := range []string{"b", "enter", "j", "k", "enter"} {
		model, _ = model.Update(keyMsg(k))
	}

	bm := model.(*browserModel)
	if bm.state == stateBuildExpr {
		t.Error("build prompt opened with no registry loaded")
	}
	if bm.err != nil {
		t.Errorf("unexpected error: %v", bm.err)
	}
}

// Entering the build prompt and submitting while the registry is still
// nil falls back to browsing instead of building.
func TestBrowserBuildSubmitWithoutRegistry(t *testing.T) {
	m := newBrowserModel("fixture.tlb", "tlb")
	m.state = stateBuildExpr
	m.input.SetValue("/double*")

	model, _ := m.Update(keyMsg("enter"))

	bm := model.(*browserModel)
	if bm.state != stateBrowse {
		t.Errorf("state = %v, want stateBrowse", bm.state)
	}
}
