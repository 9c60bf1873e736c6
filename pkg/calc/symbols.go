package calc

import "sort"

type symbol struct {
	value Number
	set   bool
}

// SymbolTable maps identifiers to optional values. Entries exist unset from
// the moment a name is first lexed until an assignment gives them a value.
type SymbolTable struct {
	entries map[string]*symbol
}

// NewSymbolTable creates an empty symbol table
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{entries: make(map[string]*symbol)}
}

// Declare registers name without a value. Existing entries are untouched.
func (t *SymbolTable) Declare(name string) {
	if _, exists := t.entries[name]; !exists {
		t.entries[name] = &symbol{}
	}
}

// Assign stores v under name, declaring it if needed.
func (t *SymbolTable) Assign(name string, v Number) {
	t.entries[name] = &symbol{value: v, set: true}
}

// Lookup returns the value of name. ok is false when the name is unknown or
// has never been assigned.
func (t *SymbolTable) Lookup(name string) (v Number, ok bool) {
	s, exists := t.entries[name]
	if !exists || !s.set {
		return Number{}, false
	}
	return s.value, true
}

// Declared reports whether name has been seen, assigned or not.
func (t *SymbolTable) Declared(name string) bool {
	_, exists := t.entries[name]
	return exists
}

// Names returns all declared names in sorted order.
func (t *SymbolTable) Names() []string {
	names := make([]string, 0, len(t.entries))
	for name := range t.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (t *SymbolTable) Len() int {
	return len(t.entries)
}
