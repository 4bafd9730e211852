// Package catalog loads the static restaurant catalog.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/darshil0/DineAI/internal/domain"
)

// ErrDuplicateID is returned when two restaurants resolve to the same
// record ID.
var ErrDuplicateID = errors.New("catalog: duplicate restaurant id")

//go:embed data/restaurants.yaml
var defaultCatalog []byte

var validate = validator.New(validator.WithRequiredStructEnabled())

type file struct {
	Restaurants []domain.Restaurant `yaml:"restaurants"`
}

// Default returns the built-in seed catalog.
func Default() ([]domain.Restaurant, error) {
	return Parse(bytes.NewReader(defaultCatalog), "embedded")
}

// Loader reads catalog files matching include patterns under a root
// directory, skipping those matching an exclude pattern.
type Loader struct {
	includes []string
	excludes []string
}

func NewLoader(includes, excludes []string) *Loader {
	if len(includes) == 0 {
		includes = []string{"**/*.yaml", "**/*.yml"}
	}
	return &Loader{includes: includes, excludes: excludes}
}

// Files returns the matching catalog files, sorted by path.
func (l *Loader) Files(root string) ([]string, error) {
	fsys := os.DirFS(root)
	seen := make(map[string]bool)
	var files []string

	for _, pattern := range l.includes {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("invalid catalog pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if seen[m] || l.excluded(m) {
				continue
			}
			seen[m] = true
			files = append(files, m)
		}
	}

	sort.Strings(files)
	for i, f := range files {
		files[i] = filepath.Join(root, filepath.FromSlash(f))
	}
	return files, nil
}

func (l *Loader) excluded(path string) bool {
	for _, pattern := range l.excludes {
		if matched, err := doublestar.Match(pattern, path); err == nil && matched {
			return true
		}
	}
	return false
}

// Load parses and validates every matching file. Entries keep file order,
// files are read in path order.
func (l *Loader) Load(root string) ([]domain.Restaurant, error) {
	files, err := l.Files(root)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no catalog files found under %s", root)
	}

	var all []domain.Restaurant
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open catalog %s: %w", path, err)
		}
		restaurants, err := decode(f, path)
		f.Close()
		if err != nil {
			return nil, err
		}
		all = append(all, restaurants...)
	}

	if err := Validate(all); err != nil {
		return nil, err
	}
	return all, nil
}

// Parse decodes and validates a single catalog document.
func Parse(r io.Reader, source string) ([]domain.Restaurant, error) {
	restaurants, err := decode(r, source)
	if err != nil {
		return nil, err
	}
	if err := Validate(restaurants); err != nil {
		return nil, err
	}
	return restaurants, nil
}

func decode(r io.Reader, source string) ([]domain.Restaurant, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", source, err)
	}

	// Accept either {restaurants: [...]} or a bare list.
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", source, err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	if node.Content[0].Kind == yaml.SequenceNode {
		var list []domain.Restaurant
		if err := node.Decode(&list); err != nil {
			return nil, fmt.Errorf("failed to parse catalog %s: %w", source, err)
		}
		return list, nil
	}

	var f file
	if err := node.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", source, err)
	}
	return f.Restaurants, nil
}

// Validate checks required fields and price tiers and rejects duplicate
// record IDs.
func Validate(restaurants []domain.Restaurant) error {
	ids := make(map[string]string, len(restaurants))
	for i, r := range restaurants {
		if err := validate.Struct(r); err != nil {
			return fmt.Errorf("catalog entry %d (%q): %w", i, r.Name, err)
		}
		id := r.RecordID()
		if prev, ok := ids[id]; ok {
			return fmt.Errorf("%w: %q used by %q and %q", ErrDuplicateID, id, prev, r.Name)
		}
		ids[id] = r.Name
	}
	return nil
}
