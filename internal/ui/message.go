package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/melodymatch/internal/flow"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind   MsgKind
	action flow.Action
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgLoaded MsgKind = iota
	MsgLoggedOut
)

// loadedMsg is the constructor for [MsgLoaded]
func loadedMsg(a flow.Action) Msg {
	return Msg{kind: MsgLoaded, action: a}
}

// loggedOutMsg is the constructor for [MsgLoggedOut]
func loggedOutMsg(a flow.Action) Msg {
	return Msg{kind: MsgLoggedOut, action: a}
}
