package shader

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-forward/engine/logger"
	"github.com/gogpu/naga"
)

// ErrNotFound is returned when a shader name has no source file in the library.
var ErrNotFound = errors.New("shader not found")

// ErrInvalid is returned when validation is enabled and naga rejects a processed source.
var ErrInvalid = errors.New("shader failed validation")

type library struct {
	mu *sync.Mutex

	fsys     fs.FS
	validate bool
	includes map[string]string
	cache    map[string]string
}

// Library loads WGSL sources by name, runs them through the pre-processor and caches the
// result. A name maps to the file "<name>.wgsl" at the root of the library's filesystem.
type Library interface {
	// Load returns the processed source for name.
	//
	// Parameters:
	//   - name: the shader name, without extension
	//
	// Returns:
	//   - string: the processed WGSL source
	//   - error: ErrNotFound when no file exists, ErrInvalid when validation is enabled and
	//     fails, or a pre-processing error
	Load(name string) (string, error)

	// Reflect loads name and returns its reflection.
	//
	// Parameters:
	//   - name: the shader name, without extension
	//
	// Returns:
	//   - Reflection: the entry points, struct sizes, bindings and vertex inputs
	//   - error: any error Load would return
	Reflect(name string) (Reflection, error)

	// Invalidate drops every cached source so the next Load re-reads from the filesystem.
	Invalidate()

	// SetFS replaces the source filesystem and invalidates the cache.
	//
	// Parameters:
	//   - fsys: the new filesystem
	SetFS(fsys fs.FS)
}

var _ Library = &library{}

// NewLibrary creates a Library over fsys.
//
// Parameters:
//   - fsys: the filesystem holding "<name>.wgsl" files
//   - options: builder options
//
// Returns:
//   - Library: the library
func NewLibrary(fsys fs.FS, options ...LibraryBuilderOption) Library {
	l := &library{
		mu:       &sync.Mutex{},
		fsys:     fsys,
		includes: map[string]string{},
		cache:    map[string]string{},
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

func (l *library) Load(name string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if src, ok := l.cache[name]; ok {
		return src, nil
	}

	raw, err := fs.ReadFile(l.fsys, name+".wgsl")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return "", fmt.Errorf("read shader %q: %w", name, err)
	}

	src, err := NewPreProcessor(l.includes).Process(string(raw))
	if err != nil {
		return "", fmt.Errorf("pre-process shader %q: %w", name, err)
	}

	if l.validate {
		if err := Validate(src); err != nil {
			if !Unsupported(err) {
				return "", fmt.Errorf("%w: %q: %w", ErrInvalid, name, err)
			}
			logger.Warn("shader validation skipped", "shader", name, "reason", err)
		}
	}

	l.cache[name] = src
	return src, nil
}

func (l *library) Reflect(name string) (Reflection, error) {
	src, err := l.Load(name)
	if err != nil {
		return Reflection{}, err
	}
	return Reflect(src), nil
}

func (l *library) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.cache)
}

func (l *library) SetFS(fsys fs.FS) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fsys = fsys
	clear(l.cache)
}

// Validate compiles src with naga and reports any front-end or validation error.
//
// Parameters:
//   - src: processed WGSL source
//
// Returns:
//   - error: the naga error, or nil
func Validate(src string) error {
	_, err := naga.Compile(src)
	return err
}

// Unsupported reports whether a naga error names a feature naga has not implemented yet,
// as opposed to a defect in the source.
func Unsupported(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "not yet implemented") || strings.Contains(msg, "not supported")
}
