// Package brands resolves brand and model signals from normalized listing
// titles using an ordered alias dictionary.
package brands

import (
	"strings"
	"sync/atomic"
)

// Entry maps a canonical brand name to its aliases (sub-brands, product
// lines, common misspellings). Aliases may be multi-word.
type Entry struct {
	Canonical string   `json:"canonical"`
	Aliases   []string `json:"aliases"`
}

// Dictionary is an ordered brand table. Order matters: extraction picks the
// first entry whose name or alias appears in a title, so lookups are
// reproducible. A Dictionary is immutable once built.
type Dictionary struct {
	entries []Entry
	// byName resolves a canonical name or alias to its entry index.
	byName map[string]int
}

// NewDictionary builds a Dictionary from ordered entries. Names and aliases
// are lowercased. When a name collides across entries the earlier entry wins.
func NewDictionary(entries []Entry) *Dictionary {
	d := &Dictionary{
		entries: make([]Entry, 0, len(entries)),
		byName:  make(map[string]int),
	}
	for _, e := range entries {
		idx := len(d.entries)
		canonical := strings.ToLower(strings.TrimSpace(e.Canonical))
		if canonical == "" {
			continue
		}
		aliases := make([]string, 0, len(e.Aliases))
		for _, a := range e.Aliases {
			a = strings.ToLower(strings.TrimSpace(a))
			if a == "" {
				continue
			}
			aliases = append(aliases, a)
			if _, taken := d.byName[a]; !taken {
				d.byName[a] = idx
			}
		}
		d.entries = append(d.entries, Entry{Canonical: canonical, Aliases: aliases})
		if _, taken := d.byName[canonical]; !taken {
			d.byName[canonical] = idx
		}
	}
	return d
}

// Entries returns the ordered entries.
func (d *Dictionary) Entries() []Entry {
	return d.entries
}

// Resolve maps a brand string (canonical name or alias) to its entry.
func (d *Dictionary) Resolve(name string) (Entry, bool) {
	idx, ok := d.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Entry{}, false
	}
	return d.entries[idx], true
}

// SameFamily reports whether two brand strings resolve to the same dictionary
// entry, e.g. "sony" and "playstation". This is the table-driven replacement
// for per-brand special cases in scoring.
func (d *Dictionary) SameFamily(a, b string) bool {
	ea, okA := d.Resolve(a)
	eb, okB := d.Resolve(b)
	return okA && okB && ea.Canonical == eb.Canonical
}

// Store holds the live Dictionary for concurrent readers. Hot reload replaces
// the whole dictionary atomically; readers never observe a partial table.
type Store struct {
	current atomic.Pointer[Dictionary]
}

// NewStore creates a Store seeded with the given dictionary.
func NewStore(d *Dictionary) *Store {
	s := &Store{}
	s.current.Store(d)
	return s
}

// Current returns the live dictionary.
func (s *Store) Current() *Dictionary {
	return s.current.Load()
}

// Swap atomically replaces the live dictionary.
func (s *Store) Swap(d *Dictionary) {
	s.current.Store(d)
}

// DefaultEntries is the built-in brand table. Deployments override it with
// a JSON file; see config.
func DefaultEntries() []Entry {
	return []Entry{
		{Canonical: "apple", Aliases: []string{"iphone", "ipad", "macbook", "imac", "airpods", "apple watch"}},
		{Canonical: "samsung", Aliases: []string{"galaxy", "qled"}},
		{Canonical: "sony", Aliases: []string{"playstation", "ps5", "ps4", "bravia", "xperia", "walkman"}},
		{Canonical: "microsoft", Aliases: []string{"xbox", "surface"}},
		{Canonical: "google", Aliases: []string{"pixel", "nest", "chromecast"}},
		{Canonical: "lenovo", Aliases: []string{"thinkpad", "ideapad", "legion"}},
		{Canonical: "dell", Aliases: []string{"xps", "inspiron", "alienware"}},
		{Canonical: "hp", Aliases: []string{"pavilion", "envy", "omen"}},
		{Canonical: "asus", Aliases: []string{"zenbook", "vivobook", "rog"}},
		{Canonical: "nintendo", Aliases: []string{"switch", "wii"}},
		{Canonical: "nike", Aliases: []string{"air force", "air jordan", "jordan", "dunk"}},
		{Canonical: "adidas", Aliases: []string{"yeezy", "superstar", "gazelle"}},
		{Canonical: "xiaomi", Aliases: []string{"redmi", "poco", "mi"}},
		{Canonical: "huawei", Aliases: []string{"mate", "honor"}},
		{Canonical: "lg", Aliases: []string{"oled", "gram"}},
	}
}
