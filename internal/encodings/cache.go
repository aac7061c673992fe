// Package encodings owns the known identity set: it loads the descriptor cache
// or rebuilds it from the enrollment images.
package encodings

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"

	"github.com/andresmejia3/rollcall/internal/types"
)

// DefaultCachePath is where descriptors are cached between runs.
const DefaultCachePath = "encodings.gob"

// ErrEmptyKnownSet means no enrollment image produced a descriptor.
var ErrEmptyKnownSet = errors.New("no valid face encodings found")

// Cache is the persisted known set: parallel descriptor and name lists.
type Cache struct {
	Descriptors [][]float64
	Names       []string
}

// Len returns the number of known identities.
func (c Cache) Len() int { return len(c.Names) }

// Identities pairs each name with its descriptor.
func (c Cache) Identities() []types.Identity {
	out := make([]types.Identity, len(c.Names))
	for i, name := range c.Names {
		out[i] = types.Identity{Name: name, Descriptor: c.Descriptors[i]}
	}
	return out
}

func (c Cache) validate() error {
	if len(c.Names) == 0 {
		return errors.New("cache has no identities")
	}
	if len(c.Descriptors) != len(c.Names) {
		return fmt.Errorf("cache has %d descriptors for %d names", len(c.Descriptors), len(c.Names))
	}
	for i, d := range c.Descriptors {
		if len(d) == 0 {
			return fmt.Errorf("cache entry %d (%s) has no descriptor", i, c.Names[i])
		}
	}
	return nil
}

// Status tags the outcome of reading the cache file.
type Status int

const (
	Absent Status = iota
	OK
	Corrupt
)

func (s Status) String() string {
	switch s {
	case Absent:
		return "absent"
	case OK:
		return "ok"
	case Corrupt:
		return "corrupt"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// LoadResult is either a valid cache (OK), no file (Absent), or a file that
// must be discarded (Corrupt, with Err describing why).
type LoadResult struct {
	Cache  Cache
	Status Status
	Err    error
}

// Load reads the cache file at path. It never returns a partially valid cache.
func Load(path string) LoadResult {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return LoadResult{Status: Absent}
	}
	if err != nil {
		return LoadResult{Status: Corrupt, Err: fmt.Errorf("failed to read cache file: %w", err)}
	}

	var c Cache
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&c); err != nil {
		return LoadResult{Status: Corrupt, Err: fmt.Errorf("failed to decode cache: %w", err)}
	}
	if err := c.validate(); err != nil {
		return LoadResult{Status: Corrupt, Err: err}
	}
	return LoadResult{Cache: c, Status: OK}
}

// Save overwrites the cache file at path.
func Save(path string, c Cache) error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("refusing to save invalid cache: %w", err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return nil
}
