// Package world opens on-disk world directories. It reads the world.mt
// metadata file, selects the configured block store backend and exposes the
// map access layers built on top of it.
package world

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/VoxMapDB/voxmap/pkg/backend"
	"github.com/VoxMapDB/voxmap/pkg/common/log"
	"github.com/VoxMapDB/voxmap/pkg/manip"
	"github.com/VoxMapDB/voxmap/pkg/mapdata"
)

var (
	// ErrMetaNotFound is returned when the world directory has no world.mt.
	ErrMetaNotFound = errors.New("world.mt not found")

	// ErrMalformedMeta is returned when world.mt cannot be parsed or lacks
	// a field the selected backend requires.
	ErrMalformedMeta = errors.New("malformed world.mt")

	// ErrUnknownBackend is returned for a backend name this library does
	// not implement.
	ErrUnknownBackend = errors.New("unknown backend")
)

// MetaFileName is the metadata file every world directory carries.
const MetaFileName = "world.mt"

// DefaultBackend is used when world.mt does not name one.
const DefaultBackend = "sqlite3"

// World is an opened world directory.
type World struct {
	dir    string
	meta   map[string]string
	data   *mapdata.MapData
	logger log.Logger
}

// Option configures an opened World.
type Option func(*World)

// WithLogger sets the logger handed down to the map access layers.
func WithLogger(logger log.Logger) Option {
	return func(w *World) {
		w.logger = logger
	}
}

// Open reads dir's world.mt and connects to the backend it names.
// Supported backends: sqlite3 (default), badger, redis, dummy (in-memory).
func Open(dir string, options ...Option) (*World, error) {
	w := &World{
		dir:    dir,
		logger: log.Default(),
	}
	for _, opt := range options {
		opt(w)
	}

	meta, err := readMeta(filepath.Join(dir, MetaFileName))
	if err != nil {
		return nil, err
	}
	w.meta = meta

	b, err := w.openBackend()
	if err != nil {
		return nil, err
	}

	w.data = mapdata.New(b, mapdata.WithLogger(w.logger))
	w.logger.Debug("opened world %s with backend %s", dir, w.BackendName())
	return w, nil
}

// readMeta parses a world.mt file. Lines are `key = value`; blank lines and
// #-comments are skipped.
func readMeta(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrMetaNotFound)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	meta := make(map[string]string)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("%w: line %d has no '='", ErrMalformedMeta, lineNo)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("%w: line %d has an empty key", ErrMalformedMeta, lineNo)
		}
		meta[key] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return meta, nil
}

// openBackend builds the backend world.mt selects.
func (w *World) openBackend() (mapdata.Backend, error) {
	switch name := w.BackendName(); name {
	case "sqlite3":
		return backend.NewSQLite(filepath.Join(w.dir, "map.sqlite"))

	case "badger":
		return backend.NewBadger(filepath.Join(w.dir, "map.badger"))

	case "redis":
		addr, ok := w.meta["redis_address"]
		if !ok || addr == "" {
			return nil, fmt.Errorf("%w: redis backend requires redis_address", ErrMalformedMeta)
		}
		hash, ok := w.meta["redis_hash"]
		if !ok || hash == "" {
			return nil, fmt.Errorf("%w: redis backend requires redis_hash", ErrMalformedMeta)
		}
		if port, ok := w.meta["redis_port"]; ok && port != "" {
			addr = addr + ":" + port
		} else {
			addr = addr + ":6379"
		}
		return backend.NewRedis(addr, hash)

	case "dummy":
		return backend.NewMemory(), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
}

// BackendName returns the backend world.mt selects, or the default.
func (w *World) BackendName() string {
	if name, ok := w.meta["backend"]; ok && name != "" {
		return name
	}
	return DefaultBackend
}

// Meta returns the value of a world.mt key.
func (w *World) Meta(key string) (string, bool) {
	v, ok := w.meta[key]
	return v, ok
}

// Dir returns the world directory.
func (w *World) Dir() string {
	return w.dir
}

// MapData returns the world's block store access layer.
func (w *World) MapData() *mapdata.MapData {
	return w.data
}

// NewVoxelManip creates an edit cache over this world's blocks.
func (w *World) NewVoxelManip() *manip.VoxelManip {
	return manip.New(w.data, manip.WithLogger(w.logger))
}

// Close closes the backend connection.
func (w *World) Close() error {
	return w.data.Close()
}
