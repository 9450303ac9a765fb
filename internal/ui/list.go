package ui

import (
	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/readdon/internal/models"
)

var _ list.Item = addonItem{}

// addonItem wraps [models.AddonDescriptor] to implement [list.Item].
type addonItem struct {
	addon models.AddonDescriptor
}

func (i addonItem) FilterValue() string { return i.addon.DisplayName() }
func (i addonItem) Title() string       { return i.addon.DisplayName() }
func (i addonItem) Description() string {
	desc := i.addon.Key()
	if v := i.addon.Manifest.Version; v != "" {
		desc += " v" + v
	}
	return desc + " • " + i.addon.TransportURL
}

func addonItems(addons []models.AddonDescriptor) []list.Item {
	items := make([]list.Item, len(addons))
	for i, a := range addons {
		items[i] = addonItem{addon: a}
	}
	return items
}
