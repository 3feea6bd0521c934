package server

import "strings"

// Item is one occupied bag slot. The clinic only ever matches items by
// name, case-insensitively; everything else is cosmetic.
type Item struct {
	Name  string `json:"name"`
	Emoji string `json:"emoji,omitempty"`
}

// Inventory is the vet's bag: a flat list of single items in pickup order.
// Medicines do not stack; buying two bandages occupies two slots, and
// treating a wound consumes exactly one of them.
type Inventory struct {
	Items []Item `json:"items"`
}

func NewInventory() Inventory {
	return Inventory{Items: make([]Item, 0)}
}

// Clone copies the inventory for snapshotting.
func (inv Inventory) Clone() Inventory {
	cloned := Inventory{Items: make([]Item, len(inv.Items))}
	copy(cloned.Items, inv.Items)
	return cloned
}

// Add appends an item to the bag.
func (inv *Inventory) Add(item Item) {
	inv.Items = append(inv.Items, item)
}

// FindFirstByName returns the first item whose name matches,
// case-insensitively.
func (inv *Inventory) FindFirstByName(name string) (Item, bool) {
	idx := inv.indexOf(name)
	if idx < 0 {
		return Item{}, false
	}
	return inv.Items[idx], true
}

// HasItemByName reports whether the bag holds at least one matching item.
func (inv *Inventory) HasItemByName(name string) bool {
	return inv.indexOf(name) >= 0
}

// RemoveFirstByName takes one matching item out of the bag and returns it.
func (inv *Inventory) RemoveFirstByName(name string) (Item, bool) {
	idx := inv.indexOf(name)
	if idx < 0 {
		return Item{}, false
	}
	taken := inv.Items[idx]
	inv.Items = append(inv.Items[:idx], inv.Items[idx+1:]...)
	return taken, true
}

func (inv *Inventory) indexOf(name string) int {
	for i, item := range inv.Items {
		if strings.EqualFold(item.Name, name) {
			return i
		}
	}
	return -1
}
