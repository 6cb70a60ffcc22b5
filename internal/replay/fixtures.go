package replay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LoadFixtures reads every *.json file in dir, sorted by name. A file holds
// one fixture object or an array of them.
func LoadFixtures(dir string) ([]Fixture, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list fixtures: %w", err)
	}
	sort.Strings(paths)

	var out []Fixture
	for _, p := range paths {
		fs, err := LoadFixture(p)
		if err != nil {
			return nil, err
		}
		out = append(out, fs...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFixtures, dir)
	}
	return out, nil
}

// LoadFixture reads the fixtures in one file. Unnamed fixtures are named
// after the file, with an index suffix for arrays.
func LoadFixture(path string) ([]Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	var fs []Fixture
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &fs); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrFixture, path, err)
		}
		for i := range fs {
			if fs[i].Name == "" {
				fs[i].Name = fmt.Sprintf("%s[%d]", base, i)
			}
		}
	} else {
		var f Fixture
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrFixture, path, err)
		}
		if f.Name == "" {
			f.Name = base
		}
		fs = []Fixture{f}
	}
	for i := range fs {
		fs[i].source = path
	}
	return fs, nil
}
