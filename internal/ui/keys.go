package ui

import (
	"sort"

	"github.com/charmbracelet/bubbles/key"
)

type keyMap struct {
	Next     key.Binding
	Prev     key.Binding
	First    key.Binding
	Last     key.Binding
	Favorite key.Binding
	Delete   key.Binding
	Share    key.Binding
	Retry    key.Binding
	Help     key.Binding
	Quit     key.Binding
	Yes      key.Binding
	No       key.Binding
}

var actionHelp = map[string]string{
	"next":     "next memory",
	"prev":     "previous memory",
	"first":    "first memory",
	"last":     "last memory",
	"favorite": "toggle favorite",
	"delete":   "delete",
	"share":    "export original",
	"retry":    "retry full image",
	"help":     "toggle help",
	"quit":     "quit",
}

// newKeyMap builds bindings from the configured key -> action table.
func newKeyMap(bindings map[string]string) keyMap {
	keys := make(map[string][]string)
	for k, action := range bindings {
		keys[action] = append(keys[action], k)
	}
	for action := range keys {
		sort.Strings(keys[action])
	}

	keys["next"] = append(keys["next"], "right")
	keys["prev"] = append(keys["prev"], "left")
	keys["quit"] = append(keys["quit"], "ctrl+c")

	bind := func(action string) key.Binding {
		ks := keys[action]
		label := ""
		if len(ks) > 0 {
			label = ks[0]
		}
		return key.NewBinding(key.WithKeys(ks...), key.WithHelp(label, actionHelp[action]))
	}

	return keyMap{
		Next:     bind("next"),
		Prev:     bind("prev"),
		First:    bind("first"),
		Last:     bind("last"),
		Favorite: bind("favorite"),
		Delete:   bind("delete"),
		Share:    bind("share"),
		Retry:    bind("retry"),
		Help:     bind("help"),
		Quit:     bind("quit"),
		Yes:      key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "yes")),
		No:       key.NewBinding(key.WithKeys("n", "N", "esc"), key.WithHelp("n", "no")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Prev, k.Next, k.Favorite, k.Delete, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Prev, k.Next, k.First, k.Last},
		{k.Favorite, k.Delete, k.Share, k.Retry},
		{k.Help, k.Quit},
	}
}
