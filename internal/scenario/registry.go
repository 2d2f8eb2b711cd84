package scenario

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/oligibbons/one-mind-many-sub000/internal/platform/errors"
)

//go:embed scenarios/*.json
var embeddedFS embed.FS

// ErrNotFound indicates a requested scenario id is not registered.
var ErrNotFound = errors.New("scenario not found")

// Registry holds validated scenario definitions keyed by id.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// LoadEmbedded builds a registry from the scenarios compiled into the binary,
// so the service can run without any external data directory.
func LoadEmbedded() (*Registry, error) {
	registry := NewRegistry()
	if err := registry.loadFS(embeddedFS, "scenarios"); err != nil {
		return nil, err
	}
	return registry, nil
}

// Register validates a definition and adds it to the registry.
func (r *Registry) Register(def Definition) error {
	if err := def.Validate(); err != nil {
		return apperrors.Wrap(apperrors.CodeScenarioInvalid,
			fmt.Sprintf("validate scenario %s: %v", def.ID, err), err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.defs[def.ID]; dup {
		return fmt.Errorf("scenario %s already registered", def.ID)
	}
	r.defs[def.ID] = def
	return nil
}

// Get returns the definition with the given id.
func (r *Registry) Get(id string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[strings.TrimSpace(id)]
	if !ok {
		return Definition{}, ErrNotFound
	}
	return def, nil
}

// IDs returns the registered scenario ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.defs))
	for id := range r.defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LoadDir registers every .json definition found in dir. Scenarios loaded
// from disk replace nothing: a duplicate id is an error.
func (r *Registry) LoadDir(dir string) error {
	return r.loadFS(os.DirFS(dir), ".")
}

func (r *Registry) loadFS(fsys fs.FS, root string) error {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return fmt.Errorf("read scenario dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := fs.ReadFile(fsys, filepath.ToSlash(filepath.Join(root, entry.Name())))
		if err != nil {
			return fmt.Errorf("read scenario %s: %w", entry.Name(), err)
		}
		def, err := ParseDefinition(data)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeScenarioInvalid,
				fmt.Sprintf("load scenario %s: %v", entry.Name(), err), err)
		}
		if err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}
