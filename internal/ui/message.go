package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/readdon/internal/models"
)

// MsgKind enumerates all message types in the prompt.
type MsgKind int

// Msg represents all possible messages in the prompt (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgAddonResolved MsgKind = iota
)

type resolved struct {
	url   string
	addon *models.AddonDescriptor
	err   error
}

// addonResolvedMsg is the constructor for [MsgAddonResolved]
func addonResolvedMsg(url string, addon *models.AddonDescriptor, err error) Msg {
	return Msg{kind: MsgAddonResolved, data: resolved{url: url, addon: addon, err: err}}
}
