package davstate

import (
	"context"
	"testing"
	"time"

	"github.com/WJQSERVER-STUDIO/davcore/internal/backend"
)

func newStore() *Store {
	return New(backend.NewMemory())
}

func TestLockLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	if _, ok, err := s.GetLock(ctx, "/a.txt"); err != nil || ok {
		t.Fatalf("expected no lock, got ok=%v err=%v", ok, err)
	}
	now := time.Unix(1000, 0)
	if err := s.SetLock(ctx, "/a.txt", "tok-1", now); err != nil {
		t.Fatalf("SetLock: %v", err)
	}
	rec, ok, err := s.GetLock(ctx, "/a.txt")
	if err != nil || !ok || rec.Token != "tok-1" {
		t.Fatalf("GetLock = %+v, ok=%v, err=%v", rec, ok, err)
	}

	if ok, err := s.ReleaseLock(ctx, "/a.txt", "wrong"); err != nil || ok {
		t.Fatalf("ReleaseLock wrong token should fail, ok=%v err=%v", ok, err)
	}
	if ok, err := s.ReleaseLock(ctx, "/a.txt", "tok-1"); err != nil || !ok {
		t.Fatalf("ReleaseLock matching token should succeed, ok=%v err=%v", ok, err)
	}
	if _, ok, _ := s.GetLock(ctx, "/a.txt"); ok {
		t.Fatal("lock should be gone after release")
	}
	if ok, err := s.ReleaseLock(ctx, "/a.txt", "anything"); err != nil || !ok {
		t.Fatalf("releasing an absent lock should succeed trivially, ok=%v err=%v", ok, err)
	}
}

func TestApplyPropPatch(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	missing, err := s.ApplyPropPatch(ctx, "/r", []PropOp{
		{Name: "Z:color", Value: "blue"},
		{Name: "Z:missing", Remove: true},
	})
	if err != nil {
		t.Fatalf("ApplyPropPatch: %v", err)
	}
	if len(missing) != 1 || missing[0] != "Z:missing" {
		t.Fatalf("missing = %v", missing)
	}
	props, err := s.GetProps(ctx, "/r")
	if err != nil || props["Z:color"] != "blue" {
		t.Fatalf("props = %v, err=%v", props, err)
	}

	missing, err = s.ApplyPropPatch(ctx, "/r", []PropOp{{Name: "Z:color", Remove: true}})
	if err != nil || len(missing) != 0 {
		t.Fatalf("removing present key: missing=%v err=%v", missing, err)
	}
	props, _ = s.GetProps(ctx, "/r")
	if _, ok := props["Z:color"]; ok {
		t.Fatal("Z:color should have been removed")
	}
}

func TestApplyOrderPrecedence(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	children := []string{"a", "b", "c"}

	ordered, err := s.ApplyOrder(ctx, "/dir", children)
	if err != nil {
		t.Fatalf("ApplyOrder: %v", err)
	}
	if len(ordered) != 3 || ordered[0] != "a" {
		t.Fatalf("no order set: ordered = %v", ordered)
	}

	if err := s.MergeProps(ctx, "/dir", map[string]string{"Z:order": "c,a"}); err != nil {
		t.Fatalf("MergeProps: %v", err)
	}
	ordered, err = s.ApplyOrder(ctx, "/dir", children)
	if err != nil {
		t.Fatalf("ApplyOrder: %v", err)
	}
	if len(ordered) != 3 || ordered[0] != "c" || ordered[1] != "a" || ordered[2] != "b" {
		t.Fatalf("CSV order: ordered = %v", ordered)
	}

	if err := s.SetOrder(ctx, "/dir", []string{"b", "c", "a"}); err != nil {
		t.Fatalf("SetOrder: %v", err)
	}
	ordered, err = s.ApplyOrder(ctx, "/dir", children)
	if err != nil {
		t.Fatalf("ApplyOrder: %v", err)
	}
	if len(ordered) != 3 || ordered[0] != "b" || ordered[1] != "c" || ordered[2] != "a" {
		t.Fatalf("explicit order should win over CSV: ordered = %v", ordered)
	}

	ordered, err = s.ApplyOrder(ctx, "/dir", []string{"a", "b", "c", "d"})
	if err != nil {
		t.Fatalf("ApplyOrder: %v", err)
	}
	if ordered[len(ordered)-1] != "d" {
		t.Fatalf("unknown new child should be appended: ordered = %v", ordered)
	}
}

func TestVersioning(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	now := time.Unix(2000, 0)

	v1, err := s.RecordVersion(ctx, "/f.txt", []byte("one"), "text/plain", now)
	if err != nil || v1.ID != "1" {
		t.Fatalf("RecordVersion 1: %+v, %v", v1, err)
	}
	v2, err := s.RecordVersion(ctx, "/f.txt", []byte("two"), "text/plain", now.Add(time.Minute))
	if err != nil || v2.ID != "2" {
		t.Fatalf("RecordVersion 2: %+v, %v", v2, err)
	}

	versions, err := s.ListVersions(ctx, "/f.txt")
	if err != nil || len(versions) != 2 {
		t.Fatalf("ListVersions = %v, err=%v", versions, err)
	}

	data, mime, err := s.ReadVersion(ctx, "/f.txt", "1")
	if err != nil || string(data) != "one" || mime != "text/plain" {
		t.Fatalf("ReadVersion(1) = %q, %q, %v", data, mime, err)
	}

	if _, _, err := s.ReadVersion(ctx, "/f.txt", "99"); err == nil {
		t.Fatal("ReadVersion of unknown id should error")
	}
}
