package manifest

import (
	"slices"

	"github.com/oshokin/bundle-exporter/internal/domain/bundle"
)

// Manifest is the ordered entry list of one platform.
type Manifest struct {
	// entries keeps insertion order; names are unique.
	entries []bundle.Entry
}

// New returns an empty manifest.
func New() *Manifest {
	return &Manifest{}
}

// Upsert overwrites the entry with the same name in place, or appends it.
// It reports whether a new entry was appended.
func (m *Manifest) Upsert(entry bundle.Entry) bool {
	for i := range m.entries {
		if m.entries[i].Name != entry.Name {
			continue
		}

		m.entries[i].Version = entry.Version
		m.entries[i].Path = entry.Path
		m.entries[i].CRC = entry.CRC

		return false
	}

	m.entries = append(m.entries, entry)

	return true
}

// Get returns the entry with the given name.
func (m *Manifest) Get(name string) (bundle.Entry, bool) {
	for _, e := range m.entries {
		if e.Name == name {
			return e, true
		}
	}

	return bundle.Entry{}, false
}

// Entries returns a copy of the entries in manifest order.
func (m *Manifest) Entries() []bundle.Entry {
	return slices.Clone(m.entries)
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	return len(m.entries)
}

// Prune removes entries for which keep returns false and returns their names.
func (m *Manifest) Prune(keep func(name string) bool) []string {
	var removed []string

	m.entries = slices.DeleteFunc(m.entries, func(e bundle.Entry) bool {
		if keep(e.Name) {
			return false
		}

		removed = append(removed, e.Name)

		return true
	})

	return removed
}
