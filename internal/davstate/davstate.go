// Package davstate implements the sidecar state store (spec.md §4.3, §6):
// locks, dead properties, collection orderings, and version history,
// persisted as JSON (and raw version blobs) under a reserved "_dav/" tree
// on top of a backend.PersistAdapter.
//
// Grounded on google-go-webdav/lock.go's lockmaster (generalized here from
// an in-process map to a backend-persisted record) and
// google-go-webdav/memfs/memfs.go's per-file dead-property map (generalized
// to a JSON sidecar record, one file per resource per sidecar kind). The
// per-(path,kind) mutex follows memfs's per-node locking discipline.
package davstate

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/exp/slices"

	"github.com/go-json-experiment/json"

	"github.com/WJQSERVER-STUDIO/davcore/internal/backend"
	"github.com/WJQSERVER-STUDIO/davcore/internal/pathkey"
)

// SidecarRoot is the reserved top-level directory name that must always be
// hidden from PROPFIND and GET listings (spec.md §3, §6).
const SidecarRoot = "_dav"

// LockRecord is the persisted state of one path's exclusive write lock.
type LockRecord struct {
	Token     string    `json:"token"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type orderRecord struct {
	Names []string `json:"names"`
}

// VersionMeta describes one recorded PUT snapshot.
type VersionMeta struct {
	ID        string    `json:"id"`
	Size      int64     `json:"size"`
	Mime      string    `json:"mime"`
	CreatedAt time.Time `json:"createdAt"`
}

type versionsRecord struct {
	Versions []VersionMeta `json:"versions"`
}

// PropOp is one PROPPATCH set/remove instruction, independent of how the
// request body was scanned.
type PropOp struct {
	Name   string
	Value  string
	Remove bool
}

// Store is the sidecar DavStateStore over a single PersistAdapter.
type Store struct {
	backend backend.PersistAdapter
	locks   keyedMutex
}

// New builds a Store backed by b.
func New(b backend.PersistAdapter) *Store {
	return &Store{backend: b}
}

func sidecarParts(kind, key string, extra ...string) []string {
	parts := make([]string, 0, 3+len(extra))
	parts = append(parts, SidecarRoot, kind, key)
	parts = append(parts, extra...)
	return parts
}

func (s *Store) readJSON(ctx context.Context, parts []string, v any) error {
	data, err := s.backend.ReadFile(ctx, parts)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	// A corrupt sidecar file must not fail the caller; readers fall back
	// to the zero value (spec.md §5: "Readers ignore parse failure and
	// return defaults").
	_ = json.Unmarshal(data, v)
	return nil
}

func (s *Store) writeJSON(ctx context.Context, parts []string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if len(parts) > 1 {
		if err := s.backend.EnsureDir(ctx, parts[:len(parts)-1]); err != nil {
			return err
		}
	}
	return s.backend.WriteFile(ctx, parts, data, "application/json")
}

// --- Locks ---

// GetLock returns the current lock on urlPath, if any.
func (s *Store) GetLock(ctx context.Context, urlPath string) (LockRecord, bool, error) {
	key := pathkey.SidecarKey(urlPath)
	var rec LockRecord
	if err := s.readJSON(ctx, sidecarParts("locks", key+".json"), &rec); err != nil {
		return LockRecord{}, false, err
	}
	return rec, rec.Token != "", nil
}

// SetLock persists a fresh lock record for urlPath.
func (s *Store) SetLock(ctx context.Context, urlPath, token string, now time.Time) error {
	key := pathkey.SidecarKey(urlPath)
	unlock := s.locks.lock("locks:" + key)
	defer unlock()
	rec := LockRecord{Token: token, UpdatedAt: now}
	return s.writeJSON(ctx, sidecarParts("locks", key+".json"), &rec)
}

// ReleaseLock removes the lock on urlPath iff token matches (or no lock
// exists), reporting whether the caller may proceed.
func (s *Store) ReleaseLock(ctx context.Context, urlPath, token string) (bool, error) {
	key := pathkey.SidecarKey(urlPath)
	unlock := s.locks.lock("locks:" + key)
	defer unlock()

	parts := sidecarParts("locks", key+".json")
	var rec LockRecord
	if err := s.readJSON(ctx, parts, &rec); err != nil {
		return false, err
	}
	if rec.Token == "" {
		return true, nil
	}
	if rec.Token != token {
		return false, nil
	}
	if err := s.backend.Remove(ctx, parts, backend.RemoveOptions{}); err != nil && !errors.Is(err, backend.ErrNotFound) {
		return false, err
	}
	return true, nil
}

// --- Dead properties ---

// GetProps returns the dead-property map for urlPath (empty, never nil).
func (s *Store) GetProps(ctx context.Context, urlPath string) (map[string]string, error) {
	key := pathkey.SidecarKey(urlPath)
	var props map[string]string
	if err := s.readJSON(ctx, sidecarParts("props", key+".json"), &props); err != nil {
		return nil, err
	}
	if props == nil {
		props = map[string]string{}
	}
	return props, nil
}

// MergeProps sets each key in set into urlPath's dead-property map,
// without the per-key missing-on-remove bookkeeping ApplyPropPatch does.
// Used internally for default properties (MKCOL/MKCALENDAR) and for
// ORDERPATCH's Z:order mirror.
func (s *Store) MergeProps(ctx context.Context, urlPath string, set map[string]string) error {
	key := pathkey.SidecarKey(urlPath)
	unlock := s.locks.lock("props:" + key)
	defer unlock()
	return s.mergePropsLocked(ctx, sidecarParts("props", key+".json"), set)
}

func (s *Store) mergePropsLocked(ctx context.Context, parts []string, set map[string]string) error {
	var props map[string]string
	if err := s.readJSON(ctx, parts, &props); err != nil {
		return err
	}
	if props == nil {
		props = map[string]string{}
	}
	for k, v := range set {
		props[k] = v
	}
	return s.writeJSON(ctx, parts, props)
}

// ApplyPropPatch applies a PROPPATCH op list, returning the names of any
// remove ops whose key was already absent (rendered as 404 propstat
// entries per spec.md §4.5.8).
func (s *Store) ApplyPropPatch(ctx context.Context, urlPath string, ops []PropOp) ([]string, error) {
	key := pathkey.SidecarKey(urlPath)
	unlock := s.locks.lock("props:" + key)
	defer unlock()

	parts := sidecarParts("props", key+".json")
	var props map[string]string
	if err := s.readJSON(ctx, parts, &props); err != nil {
		return nil, err
	}
	if props == nil {
		props = map[string]string{}
	}

	var missing []string
	for _, op := range ops {
		if op.Remove {
			if _, ok := props[op.Name]; ok {
				delete(props, op.Name)
			} else {
				missing = append(missing, op.Name)
			}
			continue
		}
		props[op.Name] = op.Value
	}
	if err := s.writeJSON(ctx, parts, props); err != nil {
		return nil, err
	}
	return missing, nil
}

// --- Collection ordering ---

// GetOrder returns the explicit persisted order for a collection, if any.
func (s *Store) GetOrder(ctx context.Context, urlPath string) ([]string, error) {
	key := pathkey.SidecarKey(urlPath)
	var rec orderRecord
	if err := s.readJSON(ctx, sidecarParts("order", key+".json"), &rec); err != nil {
		return nil, err
	}
	return rec.Names, nil
}

// SetOrder persists a deduplicated, non-empty explicit order for a
// collection and mirrors it into the Z:order dead-property CSV (spec.md
// §4.5.12).
func (s *Store) SetOrder(ctx context.Context, urlPath string, names []string) error {
	dedup := dedupeNonEmpty(names)
	key := pathkey.SidecarKey(urlPath)

	unlock := s.locks.lock("order:" + key)
	rec := orderRecord{Names: dedup}
	err := s.writeJSON(ctx, sidecarParts("order", key+".json"), &rec)
	unlock()
	if err != nil {
		return err
	}

	return s.MergeProps(ctx, urlPath, map[string]string{"Z:order": strings.Join(dedup, ",")})
}

// ApplyOrder reorders children per spec.md §4.9: explicit order first (in
// explicit sequence, unknown names dropped), then any remaining children
// appended in their input order. Falls back to the CSV Z:order dead-property
// when no explicit order file exists, and to the input order unchanged
// when neither is set.
func (s *Store) ApplyOrder(ctx context.Context, urlPath string, children []string) ([]string, error) {
	order, err := s.GetOrder(ctx, urlPath)
	if err != nil {
		return nil, err
	}
	if len(order) == 0 {
		props, err := s.GetProps(ctx, urlPath)
		if err != nil {
			return nil, err
		}
		if csv := props["Z:order"]; csv != "" {
			order = strings.Split(csv, ",")
		}
	}
	if len(order) == 0 {
		return children, nil
	}

	inChildren := make(map[string]bool, len(children))
	for _, c := range children {
		inChildren[c] = true
	}
	seen := make(map[string]bool, len(children))
	result := make([]string, 0, len(children))
	for _, name := range order {
		if inChildren[name] && !seen[name] {
			result = append(result, name)
			seen[name] = true
		}
	}
	for _, c := range children {
		if !seen[c] {
			result = append(result, c)
			seen[c] = true
		}
	}
	return result, nil
}

// dedupeNonEmpty drops empty names and duplicates, keeping first occurrence
// order. ORDERPATCH bodies name a handful of collection members at most, so
// the O(n²) slices.Contains scan reads more plainly than a parallel set.
func dedupeNonEmpty(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || slices.Contains(out, n) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// --- Versioning ---

// RecordVersion appends a new version snapshot for urlPath (spec.md §4.8).
func (s *Store) RecordVersion(ctx context.Context, urlPath string, data []byte, mime string, now time.Time) (VersionMeta, error) {
	key := pathkey.SidecarKey(urlPath)
	unlock := s.locks.lock("versions:" + key)
	defer unlock()

	metaParts := sidecarParts("versions", key, "meta.json")
	var rec versionsRecord
	if err := s.readJSON(ctx, metaParts, &rec); err != nil {
		return VersionMeta{}, err
	}
	id := strconv.Itoa(len(rec.Versions) + 1)
	vm := VersionMeta{ID: id, Size: int64(len(data)), Mime: mime, CreatedAt: now}

	binParts := sidecarParts("versions", key, id+".bin")
	if err := s.backend.EnsureDir(ctx, binParts[:len(binParts)-1]); err != nil {
		return VersionMeta{}, err
	}
	if err := s.backend.WriteFile(ctx, binParts, data, mime); err != nil {
		return VersionMeta{}, err
	}

	rec.Versions = append(rec.Versions, vm)
	if err := s.writeJSON(ctx, metaParts, &rec); err != nil {
		return VersionMeta{}, err
	}
	return vm, nil
}

// ListVersions returns the recorded versions for urlPath in insertion order.
func (s *Store) ListVersions(ctx context.Context, urlPath string) ([]VersionMeta, error) {
	key := pathkey.SidecarKey(urlPath)
	var rec versionsRecord
	if err := s.readJSON(ctx, sidecarParts("versions", key, "meta.json"), &rec); err != nil {
		return nil, err
	}
	return rec.Versions, nil
}

// ReadVersion returns the stored bytes and MIME type for one version id.
func (s *Store) ReadVersion(ctx context.Context, urlPath, id string) ([]byte, string, error) {
	key := pathkey.SidecarKey(urlPath)
	versions, err := s.ListVersions(ctx, urlPath)
	if err != nil {
		return nil, "", err
	}
	var mime string
	found := false
	for _, v := range versions {
		if v.ID == id {
			mime = v.Mime
			found = true
			break
		}
	}
	if !found {
		return nil, "", backend.ErrNotFound
	}
	data, err := s.backend.ReadFile(ctx, sidecarParts("versions", key, id+".bin"))
	if err != nil {
		return nil, "", err
	}
	return data, mime, nil
}

// keyedMutex serializes sidecar read-modify-write cycles per (path, kind)
// key, per spec.md §5's concurrency guidance.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
