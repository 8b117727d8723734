package ui

import (
	"context"
	"net/url"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/melodymatch/internal/flow"
	tu "github.com/desertthunder/melodymatch/internal/testing"
)

type fakeLoader struct {
	action  flow.Action
	loads   int
	logouts int
}

func (f *fakeLoader) Load(context.Context, flow.Page, *url.URL) flow.Action {
	f.loads++
	return f.action
}

func (f *fakeLoader) Logout() flow.Action {
	f.logouts++
	return flow.OnLogout()
}

// run executes cmd and feeds every resulting Msg back into m, ignoring spinner ticks.
func run(m *Model, cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			run(m, c)
		}
	case Msg:
		_, next := m.Update(msg)
		if next != nil {
			if _, quit := next().(tea.QuitMsg); quit {
				return
			}
		}
	}
}

func press(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestModel(t *testing.T) {
	t.Run("starts loading", func(t *testing.T) {
		m := NewModel(context.Background(), &fakeLoader{})
		if m.State() != LoadingView {
			t.Errorf("expected LoadingView, got %v", m.State())
		}
		if !strings.Contains(m.View(), "Loading") {
			t.Errorf("expected loading text, got %q", m.View())
		}
	})

	t.Run("renders profile", func(t *testing.T) {
		loader := &fakeLoader{action: flow.Action{Kind: flow.Render, Profile: tu.SampleProfile()}}
		m := NewModel(context.Background(), loader)
		m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})

		run(m, m.Init())

		if m.State() != ProfileView {
			t.Fatalf("expected ProfileView, got %v", m.State())
		}
		view := m.View()
		for _, want := range []string{"Welcome, melo", "crate digger", "Lisbon", "jazz, techno", "Trait 1"} {
			if !strings.Contains(view, want) {
				t.Errorf("expected view to contain %q", want)
			}
		}
		if loader.loads != 1 {
			t.Errorf("expected 1 load, got %d", loader.loads)
		}
	})

	t.Run("shows errors and refreshes", func(t *testing.T) {
		loader := &fakeLoader{action: flow.Action{Kind: flow.ShowError, Message: "Server error (500). Please try again later."}}
		m := NewModel(context.Background(), loader)
		run(m, m.Init())

		if m.State() != ErrorView {
			t.Fatalf("expected ErrorView, got %v", m.State())
		}
		if !strings.Contains(m.View(), "Server error (500)") {
			t.Errorf("expected error message in view")
		}

		loader.action = flow.Action{Kind: flow.Render, Profile: tu.SampleProfile()}
		_, cmd := m.Update(press('r'))
		if m.State() != LoadingView {
			t.Errorf("expected LoadingView after refresh, got %v", m.State())
		}
		run(m, cmd)

		if m.State() != ProfileView {
			t.Errorf("expected ProfileView after refresh, got %v", m.State())
		}
		if loader.loads != 2 {
			t.Errorf("expected 2 loads, got %d", loader.loads)
		}
	})

	t.Run("redirect means signed out", func(t *testing.T) {
		m := NewModel(context.Background(), &fakeLoader{action: flow.Action{Kind: flow.Redirect, Path: flow.PathLanding}})
		run(m, m.Init())

		if m.State() != SignedOutView {
			t.Fatalf("expected SignedOutView, got %v", m.State())
		}
		if !strings.Contains(m.View(), "auth login") {
			t.Errorf("expected login hint, got %q", m.View())
		}
	})

	t.Run("logout", func(t *testing.T) {
		loader := &fakeLoader{action: flow.Action{Kind: flow.Render, Profile: tu.SampleProfile()}}
		m := NewModel(context.Background(), loader)
		run(m, m.Init())

		_, cmd := m.Update(press('l'))
		run(m, cmd)

		if loader.logouts != 1 {
			t.Errorf("expected 1 logout, got %d", loader.logouts)
		}
		if m.State() != SignedOutView {
			t.Errorf("expected SignedOutView, got %v", m.State())
		}
	})

	t.Run("quit", func(t *testing.T) {
		m := NewModel(context.Background(), &fakeLoader{})
		_, cmd := m.Update(press('q'))
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
	})
}

func TestBar(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{0, "░░░░"},
		{0.5, "██░░"},
		{1, "████"},
		{1.7, "████"},
		{-1, "░░░░"},
	}
	for _, tt := range tests {
		if got := Bar(tt.v, 4); got != tt.want {
			t.Errorf("Bar(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}
