// Package vfs is the boundary to the virtual file system that exposes kernel
// objects as paths. Rendering of each object type is supplied by the engine
// through a Renderer registered for that type.
package vfs

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ObjectType enumerates the kernel object types that can be rendered.
type ObjectType uint8

// Known object types.
const (
	ObjectUnknown ObjectType = iota
	ObjectProcess
	ObjectThread
	ObjectFile
	ObjectKey
	ObjectEvent
	ObjectMutant
	ObjectSemaphore
	ObjectSection
	ObjectToken
	ObjectDriver
	ObjectDevice
)

var objectNames = [...]string{
	"Unknown",
	"Process",
	"Thread",
	"File",
	"Key",
	"Event",
	"Mutant",
	"Semaphore",
	"Section",
	"Token",
	"Driver",
	"Device",
}

func (t ObjectType) String() string {
	if int(t) < len(objectNames) {
		return objectNames[t]
	}
	return fmt.Sprintf("ObjectType(%d)", uint8(t))
}

// ParseObjectType resolves a case-insensitive type name.
func ParseObjectType(name string) (ObjectType, bool) {
	for i, n := range objectNames {
		if strings.EqualFold(n, name) {
			return ObjectType(i), true
		}
	}
	return ObjectUnknown, false
}

// ErrNoRenderer is returned for object types without a registered Renderer.
var ErrNoRenderer = errors.New("vfs: no renderer for object type")

// ErrNotFound is returned by renderers for unknown objects or file names.
var ErrNotFound = errors.New("vfs: not found")

// Entry is one listed file or directory.
type Entry struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Dir  bool   `json:"dir"`
}

// Renderer exposes kernel objects of one type at virtual address va.
type Renderer interface {
	List(va uint64) ([]Entry, error)
	Read(name string, va uint64, p []byte, off int64) (int, error)
}

// Registry maps object types to renderers. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	renderers map[ObjectType]Renderer
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{renderers: make(map[ObjectType]Renderer)}
}

// Register installs r for t, replacing any previous renderer.
func (g *Registry) Register(t ObjectType, r Renderer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.renderers[t] = r
}

func (g *Registry) lookup(t ObjectType) (Renderer, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.renderers[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoRenderer, t)
	}
	return r, nil
}

// List lists the files of the object of type t at va.
func (g *Registry) List(t ObjectType, va uint64) ([]Entry, error) {
	r, err := g.lookup(t)
	if err != nil {
		return nil, err
	}
	return r.List(va)
}

// Read reads file name of the object of type t at va.
func (g *Registry) Read(t ObjectType, name string, va uint64, p []byte, off int64) (int, error) {
	r, err := g.lookup(t)
	if err != nil {
		return 0, err
	}
	return r.Read(name, va, p, off)
}

// ReadAt copies data[off:] into p. It returns io.EOF once off is past the end.
func ReadAt(data, p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("vfs: negative offset %d", off)
	}
	if off >= int64(len(data)) {
		return 0, io.EOF
	}
	return copy(p, data[off:]), nil
}
