// Package preset persists named filter views as JSON files in a directory.
package preset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/datasift-cli/internal/aggregate"
	"github.com/KaramelBytes/datasift-cli/internal/filter"
	"github.com/KaramelBytes/datasift-cli/internal/utils"
)

const fileExt = ".json"

// ErrNotFound is returned when no preset has the requested name.
var ErrNotFound = errors.New("preset not found")

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Preset is a saved view: filter parameters plus an optional aggregation.
type Preset struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Profile     string          `json:"profile,omitempty"`
	Params      filter.Params   `json:"params"`
	Aggregate   *aggregate.Spec `json:"aggregate,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	// Not serialized: directory the preset lives in.
	dir string `json:"-"`
}

// ValidateName rejects names that are not safe as file names.
func ValidateName(name string) error {
	if !validName.MatchString(name) || strings.HasSuffix(name, fileExt) {
		return fmt.Errorf("invalid preset name %q (letters, digits, '.', '_' and '-' only)", name)
	}
	return nil
}

// New constructs an in-memory preset. Call Save to persist.
func New(dir, name, profile string, params filter.Params) (*Preset, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	now := time.Now()
	return &Preset{
		ID:        uuid.NewString(),
		Name:      name,
		Profile:   profile,
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
		dir:       dir,
	}, nil
}

func path(dir, name string) string { return filepath.Join(dir, name+fileExt) }

// Path returns the preset's file location.
func (p *Preset) Path() string { return path(p.dir, p.Name) }

// Save writes the preset atomically, creating the directory if needed.
func (p *Preset) Save() error {
	if p.dir == "" {
		return errors.New("preset directory not set")
	}
	if err := utils.EnsureDir(p.dir); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	p.UpdatedAt = time.Now()
	data, err := utils.PrettyJSON(p)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(p.Path(), data)
}

// Load reads the named preset from dir.
func Load(dir, name string) (*Preset, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	p, err := read(path(dir, name))
	if err != nil {
		return nil, err
	}
	p.dir = dir
	return p, nil
}

func read(file string) (*Preset, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSuffix(filepath.Base(file), fileExt))
		}
		return nil, fmt.Errorf("read preset: %w", err)
	}
	var p Preset
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("parse preset %s: %w", filepath.Base(file), err)
	}
	return &p, nil
}

// List returns every preset in dir sorted by name. A missing directory is empty.
func List(dir string) ([]*Preset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read presets dir: %w", err)
	}
	var out []*Preset
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != fileExt {
			continue
		}
		p, err := read(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		p.dir = dir
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes the named preset.
func Delete(dir, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := os.Remove(path(dir, name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("delete preset: %w", err)
	}
	return nil
}
