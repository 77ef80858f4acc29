// Package backend defines the PersistAdapter contract (spec §4.2): the
// external storage collaborator the DAV engine is layered on top of, plus
// two reference implementations (in-memory and OS-filesystem) used by
// cmd/davserver and by the engine's own tests.
package backend

import (
	"context"
	"errors"
	"io"
	"time"
)

// Typed error kinds a PersistAdapter reports. The engine's error taxonomy
// mapper (mapBackendErr in internal/dav's errors.go) maps these to WebDAV status
// codes per spec §4.12 / §7.
var (
	ErrNotFound        = errors.New("backend: not found")
	ErrExists          = errors.New("backend: already exists")
	ErrNotDirectory    = errors.New("backend: not a directory")
	ErrIsDirectory     = errors.New("backend: is a directory")
	ErrDirectoryNotEmpty = errors.New("backend: directory not empty")
	ErrPermission      = errors.New("backend: permission denied")
)

// NodeType discriminates a Stat result between a file and a collection.
type NodeType int

const (
	File NodeType = iota
	Dir
)

// Info is the metadata a Stat call returns.
type Info struct {
	Type  NodeType
	Size  int64
	Mtime time.Time
	Mime  string
}

// RemoveOptions configures Remove.
type RemoveOptions struct {
	Recursive bool
}

// PersistAdapter is the pluggable storage backend (spec §4.2). All
// operations are atomic per call; no higher transaction is required.
// Implementations must be safe for concurrent use.
type PersistAdapter interface {
	Exists(ctx context.Context, parts []string) (bool, error)
	Stat(ctx context.Context, parts []string) (Info, error)
	Readdir(ctx context.Context, parts []string) ([]string, error)
	ReadFile(ctx context.Context, parts []string) ([]byte, error)
	// OpenFile exposes a ReadSeekCloser for range/streaming reads; callers
	// that only need the full body may prefer ReadFile.
	OpenFile(ctx context.Context, parts []string) (io.ReadSeekCloser, error)
	WriteFile(ctx context.Context, parts []string, data []byte, mime string) error
	EnsureDir(ctx context.Context, parts []string) error
	Remove(ctx context.Context, parts []string, opt RemoveOptions) error
	Move(ctx context.Context, from, to []string) error
	Copy(ctx context.Context, from, to []string) error
}
