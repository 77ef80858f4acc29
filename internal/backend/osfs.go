package backend

import (
	"context"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// OSFS is a PersistAdapter backed by the local OS filesystem, rooted at a
// directory so resolved paths can never escape it.
//
// Grounded on infinite-iroha-touka/webdav/osfs.go's resolve() containment
// check (symlink-aware for existing paths, parent-aware for paths about to
// be created by PUT/MKCOL).
type OSFS struct {
	root string
}

// NewOSFS roots a PersistAdapter at dir, creating it if necessary.
func NewOSFS(dir string) (*OSFS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &OSFS{root: abs}, nil
}

func (fs *OSFS) resolve(parts []string) (string, error) {
	p := filepath.Join(append([]string{fs.root}, parts...)...)
	if _, err := os.Lstat(p); err == nil {
		resolved, err := filepath.EvalSymlinks(p)
		if err != nil {
			return "", err
		}
		p = resolved
	} else if !os.IsNotExist(err) {
		return "", err
	} else if parent := filepath.Dir(p); parent != p {
		if _, err := os.Stat(parent); err == nil {
			resolvedParent, err := filepath.EvalSymlinks(parent)
			if err != nil {
				return "", err
			}
			p = filepath.Join(resolvedParent, filepath.Base(p))
		}
	}
	if p != fs.root && !strings.HasPrefix(p, fs.root+string(filepath.Separator)) {
		return "", ErrPermission
	}
	return p, nil
}

func mapOSErr(err error) error {
	switch {
	case err == nil:
		return nil
	case os.IsNotExist(err):
		return ErrNotFound
	case os.IsExist(err):
		return ErrExists
	case os.IsPermission(err):
		return ErrPermission
	default:
		return err
	}
}

func (fs *OSFS) Exists(ctx context.Context, parts []string) (bool, error) {
	p, err := fs.resolve(parts)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, mapOSErr(err)
	}
	return true, nil
}

func (fs *OSFS) Stat(ctx context.Context, parts []string) (Info, error) {
	p, err := fs.resolve(parts)
	if err != nil {
		return Info{}, err
	}
	fi, err := os.Stat(p)
	if err != nil {
		return Info{}, mapOSErr(err)
	}
	nt := File
	if fi.IsDir() {
		nt = Dir
	}
	m := ""
	if !fi.IsDir() {
		m = mime.TypeByExtension(filepath.Ext(p))
	}
	return Info{Type: nt, Size: fi.Size(), Mtime: fi.ModTime(), Mime: m}, nil
}

func (fs *OSFS) Readdir(ctx context.Context, parts []string) ([]string, error) {
	p, err := fs.resolve(parts)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(p)
	if err != nil {
		return nil, mapOSErr(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func (fs *OSFS) ReadFile(ctx context.Context, parts []string) ([]byte, error) {
	p, err := fs.resolve(parts)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, mapOSErr(err)
	}
	return b, nil
}

func (fs *OSFS) OpenFile(ctx context.Context, parts []string) (io.ReadSeekCloser, error) {
	p, err := fs.resolve(parts)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, mapOSErr(err)
	}
	return f, nil
}

func (fs *OSFS) WriteFile(ctx context.Context, parts []string, data []byte, mimeType string) error {
	p, err := fs.resolve(parts)
	if err != nil {
		return err
	}
	return mapOSErr(os.WriteFile(p, data, 0o644))
}

func (fs *OSFS) EnsureDir(ctx context.Context, parts []string) error {
	p, err := fs.resolve(parts)
	if err != nil {
		return err
	}
	return mapOSErr(os.MkdirAll(p, 0o755))
}

func (fs *OSFS) Remove(ctx context.Context, parts []string, opt RemoveOptions) error {
	p, err := fs.resolve(parts)
	if err != nil {
		return err
	}
	if opt.Recursive {
		return mapOSErr(os.RemoveAll(p))
	}
	entries, err := os.ReadDir(p)
	if err == nil && len(entries) > 0 {
		return ErrDirectoryNotEmpty
	}
	return mapOSErr(os.Remove(p))
}

func (fs *OSFS) Move(ctx context.Context, from, to []string) error {
	fp, err := fs.resolve(from)
	if err != nil {
		return err
	}
	tp, err := fs.resolve(to)
	if err != nil {
		return err
	}
	return mapOSErr(os.Rename(fp, tp))
}

func (fs *OSFS) Copy(ctx context.Context, from, to []string) error {
	fp, err := fs.resolve(from)
	if err != nil {
		return err
	}
	tp, err := fs.resolve(to)
	if err != nil {
		return err
	}
	fi, err := os.Stat(fp)
	if err != nil {
		return mapOSErr(err)
	}
	if fi.IsDir() {
		return fs.copyDir(fp, tp)
	}
	return fs.copyFile(fp, tp, fi)
}

func (fs *OSFS) copyFile(from, to string, fi os.FileInfo) error {
	data, err := os.ReadFile(from)
	if err != nil {
		return mapOSErr(err)
	}
	return mapOSErr(os.WriteFile(to, data, fi.Mode()))
}

func (fs *OSFS) copyDir(from, to string) error {
	if err := os.MkdirAll(to, 0o755); err != nil {
		return mapOSErr(err)
	}
	entries, err := os.ReadDir(from)
	if err != nil {
		return mapOSErr(err)
	}
	for _, e := range entries {
		src := filepath.Join(from, e.Name())
		dst := filepath.Join(to, e.Name())
		if e.IsDir() {
			if err := fs.copyDir(src, dst); err != nil {
				return err
			}
			continue
		}
		fi, err := e.Info()
		if err != nil {
			return mapOSErr(err)
		}
		if err := fs.copyFile(src, dst, fi); err != nil {
			return err
		}
	}
	return nil
}
