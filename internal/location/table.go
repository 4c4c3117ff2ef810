// Package location rewrites facility names in free text into canonical
// building codes using a static campus table.
package location

import (
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed campus.yaml
var defaultTable []byte

// Building is one table entry.
type Building struct {
	Code     string   `yaml:"code"`
	TWAbbrev string   `yaml:"tw_abbrev"`
	TW       string   `yaml:"tw"`
	EN       []string `yaml:"en"`
}

// Campus groups buildings. Campus names are informational only.
type Campus struct {
	Name      string     `yaml:"name"`
	Buildings []Building `yaml:"buildings"`
}

// Table is the ordered campus list.
type Table struct {
	Campuses []Campus `yaml:"campuses"`
}

// Buildings returns every building in table order.
func (t *Table) Buildings() []Building {
	var out []Building
	for _, c := range t.Campuses {
		out = append(out, c.Buildings...)
	}
	return out
}

// DefaultTable returns the built-in campus table.
func DefaultTable() *Table {
	t, err := parseTable(defaultTable)
	if err != nil {
		panic("location: builtin table: " + err.Error())
	}
	return t
}

// LoadTable reads a YAML campus table from r.
func LoadTable(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("location: read table: %w", err)
	}
	return parseTable(data)
}

// LoadTableFile reads a YAML campus table from path.
func LoadTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("location: open table: %w", err)
	}
	defer f.Close()
	return LoadTable(f)
}

func parseTable(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("location: decode table: %w", err)
	}
	seen := make(map[string]bool)
	for ci, c := range t.Campuses {
		for bi, b := range c.Buildings {
			if b.Code == "" {
				return nil, fmt.Errorf("location: campuses[%d].buildings[%d]: code is required", ci, bi)
			}
			if seen[b.Code] {
				return nil, fmt.Errorf("location: duplicate building code %q", b.Code)
			}
			seen[b.Code] = true
		}
	}
	return &t, nil
}
