package backend

import (
	"bytes"
	"context"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-memory PersistAdapter. It has no limit on how much memory
// it will consume and is intended for tests and small deployments.
//
// Grounded on google-go-webdav/memfs/memfs.go: a flat map keyed by the
// canonical path string, guarded by a single mutex, with CopyTo performing
// a deep clone of file bytes for COPY and an in-place rename for MOVE.
type Memory struct {
	mu    sync.Mutex
	nodes map[string]*memNode
}

type memNode struct {
	dir   bool
	data  []byte
	mime  string
	mtime time.Time
}

// NewMemory creates an empty in-memory backend, seeded with a root
// collection.
func NewMemory() *Memory {
	m := &Memory{nodes: make(map[string]*memNode)}
	m.nodes["/"] = &memNode{dir: true, mtime: time.Now()}
	return m
}

func key(parts []string) string {
	if len(parts) == 0 {
		return "/"
	}
	return "/" + strings.Join(parts, "/")
}

func (m *Memory) Exists(ctx context.Context, parts []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.nodes[key(parts)]
	return ok, nil
}

func (m *Memory) Stat(ctx context.Context, parts []string) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[key(parts)]
	if !ok {
		return Info{}, ErrNotFound
	}
	nt := File
	if n.dir {
		nt = Dir
	}
	return Info{Type: nt, Size: int64(len(n.data)), Mtime: n.mtime, Mime: n.mime}, nil
}

func (m *Memory) Readdir(ctx context.Context, parts []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	base, ok := m.nodes[key(parts)]
	if !ok {
		return nil, ErrNotFound
	}
	if !base.dir {
		return nil, ErrNotDirectory
	}
	prefix := key(parts)
	if prefix != "/" {
		prefix += "/"
	}
	seen := map[string]bool{}
	var names []string
	for k := range m.nodes {
		if k == key(parts) || !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := strings.TrimPrefix(k, prefix)
		name := strings.SplitN(rest, "/", 2)[0]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *Memory) ReadFile(ctx context.Context, parts []string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[key(parts)]
	if !ok {
		return nil, ErrNotFound
	}
	if n.dir {
		return nil, ErrIsDirectory
	}
	out := make([]byte, len(n.data))
	copy(out, n.data)
	return out, nil
}

type memReader struct {
	*bytes.Reader
}

func (memReader) Close() error { return nil }

func (m *Memory) OpenFile(ctx context.Context, parts []string) (io.ReadSeekCloser, error) {
	b, err := m.ReadFile(ctx, parts)
	if err != nil {
		return nil, err
	}
	return memReader{bytes.NewReader(b)}, nil
}

func (m *Memory) WriteFile(ctx context.Context, parts []string, data []byte, mime string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(parts)
	if n, ok := m.nodes[k]; ok && n.dir {
		return ErrIsDirectory
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	m.nodes[k] = &memNode{data: buf, mime: mime, mtime: time.Now()}
	return nil
}

func (m *Memory) EnsureDir(ctx context.Context, parts []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i <= len(parts); i++ {
		k := key(parts[:i])
		if n, ok := m.nodes[k]; ok {
			if !n.dir {
				return ErrNotDirectory
			}
			continue
		}
		m.nodes[k] = &memNode{dir: true, mtime: time.Now()}
	}
	return nil
}

func (m *Memory) Remove(ctx context.Context, parts []string, opt RemoveOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(parts)
	n, ok := m.nodes[k]
	if !ok {
		return ErrNotFound
	}
	if n.dir {
		hasChildren := false
		prefix := k
		if prefix != "/" {
			prefix += "/"
		}
		for ck := range m.nodes {
			if ck != k && strings.HasPrefix(ck, prefix) {
				hasChildren = true
				break
			}
		}
		if hasChildren && !opt.Recursive {
			return ErrDirectoryNotEmpty
		}
		if opt.Recursive {
			for ck := range m.nodes {
				if ck == k || strings.HasPrefix(ck, prefix) {
					delete(m.nodes, ck)
				}
			}
			return nil
		}
	}
	delete(m.nodes, k)
	return nil
}

func (m *Memory) Move(ctx context.Context, from, to []string) error {
	return m.moveOrCopy(from, to, true)
}

func (m *Memory) Copy(ctx context.Context, from, to []string) error {
	return m.moveOrCopy(from, to, false)
}

func (m *Memory) moveOrCopy(from, to []string, move bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fk, tk := key(from), key(to)
	src, ok := m.nodes[fk]
	if !ok {
		return ErrNotFound
	}
	parentKey := key(to[:len(to)-1])
	if len(to) == 0 {
		parentKey = "/"
	}
	if pn, ok := m.nodes[parentKey]; !ok || !pn.dir {
		return ErrNotFound
	}

	prefix := fk
	if prefix != "/" {
		prefix += "/"
	}
	type pair struct {
		oldKey, newKey string
		node           *memNode
	}
	var moves []pair
	for ck, cn := range m.nodes {
		if ck == fk {
			moves = append(moves, pair{ck, tk, cn})
			continue
		}
		if strings.HasPrefix(ck, prefix) {
			rel := strings.TrimPrefix(ck, prefix)
			moves = append(moves, pair{ck, path.Join(tk, rel), cn})
		}
	}
	for _, mv := range moves {
		if move {
			delete(m.nodes, mv.oldKey)
			mv.node.mtime = time.Now()
			m.nodes[mv.newKey] = mv.node
		} else {
			clone := &memNode{dir: mv.node.dir, mime: mv.node.mime, mtime: time.Now()}
			if !mv.node.dir {
				clone.data = append([]byte(nil), mv.node.data...)
			}
			m.nodes[mv.newKey] = clone
		}
	}
	_ = src
	return nil
}
