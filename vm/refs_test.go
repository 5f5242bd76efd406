package vm

import (
	"testing"

	"github.com/objlink/objlink/errors"
)

func TestRefTableReleaseOnce(t *testing.T) {
	rt := New(Options{})
	obj := rt.NewString("hello")
	ref := rt.refs.newRef(obj, obj.Class())

	if err := rt.refs.delete(ref); err != nil {
		t.Fatalf("first release failed: %v", err)
	}

	err := rt.refs.delete(ref)
	if err == nil {
		t.Fatal("second release succeeded")
	}
	if !errors.IsKind(err, errors.KindRefReleased) {
		t.Fatalf("expected ref_released, got %v", err)
	}
}

func TestRefTableUseAfterRelease(t *testing.T) {
	rt := New(Options{})
	obj := rt.NewString("gone")
	ref := rt.refs.newRef(obj, obj.Class())

	if err := rt.refs.delete(ref); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	if _, _, err := rt.refs.get(ref); !errors.IsKind(err, errors.KindRefReleased) {
		t.Fatalf("expected ref_released on use-after-release, got %v", err)
	}
}

func TestRefTableInvalidToken(t *testing.T) {
	rt := New(Options{})

	if _, _, err := rt.refs.get(0); err == nil {
		t.Fatal("ref 0 resolved")
	}
	if _, _, err := rt.refs.get(42); err == nil {
		t.Fatal("unknown ref resolved")
	}
}

func TestRefTableCloneIsIndependent(t *testing.T) {
	rt := New(Options{})
	obj := rt.NewString("shared")
	ref := rt.refs.newRef(obj, obj.Class())

	clone, err := rt.refs.clone(ref)
	if err != nil {
		t.Fatalf("clone failed: %v", err)
	}
	if clone == ref {
		t.Fatal("clone returned the same token")
	}

	// Releasing the original must not invalidate the clone.
	if err := rt.refs.delete(ref); err != nil {
		t.Fatalf("release original: %v", err)
	}
	got, _, err := rt.refs.get(clone)
	if err != nil {
		t.Fatalf("clone unusable after original released: %v", err)
	}
	if got != obj {
		t.Fatal("clone resolves to a different object")
	}
	if err := rt.refs.delete(clone); err != nil {
		t.Fatalf("release clone: %v", err)
	}
	if rt.refs.live() != 0 {
		t.Fatalf("expected empty table, %d live", rt.refs.live())
	}
}

func TestRefTableReusesSlots(t *testing.T) {
	rt := New(Options{})
	obj := rt.NewString("x")

	a := rt.refs.newRef(obj, obj.Class())
	if err := rt.refs.delete(a); err != nil {
		t.Fatal(err)
	}
	b := rt.refs.newRef(obj, obj.Class())
	if a != b {
		t.Fatalf("slot not reused: %d then %d", a, b)
	}
	// The reissued token is valid even though its numeric value was
	// released once before.
	if _, _, err := rt.refs.get(b); err != nil {
		t.Fatalf("reissued ref invalid: %v", err)
	}
}
