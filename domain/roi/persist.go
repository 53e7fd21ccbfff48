package roi

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// DefaultFileName is the grid config written next to the frames.
const DefaultFileName = "Roi.json"

// Save writes the layout parameters as indented JSON. Generated ROIs are not
// part of the record.
func (g *Grid) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("roi: save %s: %w", path, err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(g); err != nil {
		f.Close()
		return fmt.Errorf("roi: save %s: %w", path, err)
	}
	return f.Close()
}

// Load reads a grid config. Fields missing from the file keep their default
// values. The returned grid is not generated.
func Load(path string) (*Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("roi: load %s: %w", path, err)
	}
	g := DefaultGrid()
	if err := json.Unmarshal(data, g); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, path, err)
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// LoadOrDefault is the folder-open variant of Load: a missing file yields the
// default grid with no error; a malformed file yields the default grid
// together with the parse error so the caller can report it.
func LoadOrDefault(path string) (*Grid, error) {
	g, err := Load(path)
	if err == nil {
		return g, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return DefaultGrid(), nil
	}
	return DefaultGrid(), err
}
