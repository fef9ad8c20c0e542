package brands

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadEntries reads an ordered brand table from a JSON file. The file holds
// an array of {"canonical": ..., "aliases": [...]} objects; array order is
// the dictionary iteration order.
func LoadEntries(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read brand dictionary: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse brand dictionary: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("brand dictionary %s is empty", path)
	}
	return entries, nil
}
