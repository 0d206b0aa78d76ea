package gateway

import (
	"bookletku/internal/catalog"
)

type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
)

// State is a read-only snapshot of the gateway's mirrors.
type State struct {
	Status           Status                `json:"status"`
	Items            []catalog.MenuItem    `json:"items"`
	Settings         catalog.StoreSettings `json:"settings"`
	HasSettings      bool                  `json:"hasSettings"`
	CustomCategories []string              `json:"customCategories"`
	Version          uint64                `json:"version"`
}

func (s State) clone() State {
	s.Items = append([]catalog.MenuItem(nil), s.Items...)
	s.CustomCategories = append([]string(nil), s.CustomCategories...)
	return s
}

// Item looks an item up by id in the snapshot.
func (s State) Item(id string) (catalog.MenuItem, bool) {
	for _, item := range s.Items {
		if item.ID == id {
			return item, true
		}
	}
	return catalog.MenuItem{}, false
}

// --- Transitions ---

type action interface{ isAction() }

type itemsLoaded struct{ items []catalog.MenuItem }

type settingsLoaded struct{ settings catalog.StoreSettings }

type reorderApplied struct{ items []catalog.MenuItem }

type loadSettled struct{}

func (itemsLoaded) isAction()    {}
func (settingsLoaded) isAction() {}
func (reorderApplied) isAction() {}
func (loadSettled) isAction()    {}

// reduce is the only place the mirrors change.
func reduce(s State, a action) State {
	switch a := a.(type) {
	case itemsLoaded:
		s.Items = a.items
		s.CustomCategories = catalog.CustomCategories(a.items)
	case reorderApplied:
		s.Items = a.items
		s.CustomCategories = catalog.CustomCategories(a.items)
	case settingsLoaded:
		s.Settings = a.settings
		s.HasSettings = true
	case loadSettled:
		s.Status = StatusReady
	default:
		return s
	}
	s.Version++
	return s
}

// --- Inbound notifications ---

type notification int

const (
	itemsChanged notification = iota
	settingsChanged
	authChanged
)

func (n notification) String() string {
	switch n {
	case itemsChanged:
		return "itemsChanged"
	case settingsChanged:
		return "settingsChanged"
	case authChanged:
		return "authChanged"
	}
	return "unknown"
}

// refetchFor says which mirrors a notification invalidates.
func refetchFor(n notification) (items, settings bool) {
	switch n {
	case itemsChanged:
		return true, false
	case settingsChanged:
		return false, true
	case authChanged:
		return true, true
	}
	return false, false
}
