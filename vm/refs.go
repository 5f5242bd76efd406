package vm

import (
	"sync"

	"github.com/objlink/objlink/errors"
)

// Ref is an opaque token for one entry in the runtime's reference table.
// Ref 0 is reserved and always invalid. Every Ref handed across the boundary
// pins its object until the host releases it; releasing the same Ref twice
// or using it after release is a checked, defined error, never corruption.
type Ref uint64

type refEntry struct {
	obj      *Object
	declared *Class
	valid    bool
}

// refTable is the runtime-side half of the garbage collector bookkeeping:
// a slot array with a free list, one entry per live host-held reference.
// Each entry carries the declared class the reference was minted (or cast)
// as, which scopes subsequent member resolution.
type refTable struct {
	mu       sync.Mutex
	entries  []refEntry
	freeList []Ref
}

func (t *refTable) newRef(obj *Object, declared *Class) Ref {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := refEntry{obj: obj, declared: declared, valid: true}

	if n := len(t.freeList); n > 0 {
		ref := t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		t.entries[ref-1] = e
		return ref
	}

	t.entries = append(t.entries, e)
	return Ref(len(t.entries))
}

func (t *refTable) get(ref Ref) (*Object, *Class, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, err := t.entryLocked(ref)
	if err != nil {
		return nil, nil, err
	}
	return e.obj, e.declared, nil
}

// clone mints an independent entry for the same object. The two refs are
// released independently; this is the only sanctioned way to duplicate a
// reference.
func (t *refTable) clone(ref Ref) (Ref, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, err := t.entryLocked(ref)
	if err != nil {
		return 0, err
	}

	ne := refEntry{obj: e.obj, declared: e.declared, valid: true}
	if n := len(t.freeList); n > 0 {
		nref := t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		t.entries[nref-1] = ne
		return nref, nil
	}
	t.entries = append(t.entries, ne)
	return Ref(len(t.entries)), nil
}

func (t *refTable) delete(ref Ref) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, err := t.entryLocked(ref)
	if err != nil {
		return err
	}

	e.valid = false
	e.obj = nil
	e.declared = nil
	t.freeList = append(t.freeList, ref)
	return nil
}

func (t *refTable) entryLocked(ref Ref) (*refEntry, error) {
	if ref == 0 || int(ref) > len(t.entries) {
		return nil, errors.RefReleased("invalid reference token")
	}
	e := &t.entries[ref-1]
	if !e.valid {
		return nil, errors.RefReleased("reference already released")
	}
	return e, nil
}

func (t *refTable) live() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	count := 0
	for i := range t.entries {
		if t.entries[i].valid {
			count++
		}
	}
	return count
}
