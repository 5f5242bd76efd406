package testbed

import (
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/objlink/objlink/bridge"
	"github.com/objlink/objlink/errors"
)

func newRuntime(t *testing.T) *bridge.Runtime {
	t.Helper()
	rt, err := bridge.New()
	if err != nil {
		t.Fatalf("runtime: %v", err)
	}
	if err := Register(rt); err != nil {
		t.Fatalf("register demo classes: %v", err)
	}
	return rt
}

func TestWidgetLifecycle(t *testing.T) {
	rt := newRuntime(t)

	w, err := rt.CreateInstance(WidgetClass, bridge.StringArg("widget one"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	label, err := w.Invoke("getLabel")
	if err != nil {
		t.Fatalf("getLabel: %v", err)
	}
	s, err := bridge.To[string](rt, label)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if s != "widget one" {
		t.Fatalf("label = %q", s)
	}

	if err := label.Close(); err != nil {
		t.Fatalf("close label: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close widget: %v", err)
	}
	if err := w.Close(); !errors.IsKind(err, errors.KindRefReleased) {
		t.Fatalf("second close: %v", err)
	}
}

func TestWidgetVariadicConstructor(t *testing.T) {
	rt := newRuntime(t)

	w, err := rt.CreateInstance(WidgetClass,
		bridge.ArrayArg("lang.String",
			bridge.StringArg("abc"), bridge.StringArg("def"), bridge.StringArg("ghi")))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer w.Close()

	var label string
	if err := rt.ChainOn(w).Invoke("getLabel").ToGo(&label); err != nil {
		t.Fatalf("chain: %v", err)
	}
	if label != "abc, def, ghi" {
		t.Fatalf("label = %q", label)
	}
}

func TestWidgetJoinArray(t *testing.T) {
	rt := newRuntime(t)

	var joined string
	err := rt.ChainCreate(WidgetClass).
		Invoke("join", bridge.ArrayArg("lang.String",
			bridge.StringArg("a"), bridge.StringArg("b"))).
		ToGo(&joined)
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	if joined != "a, b" {
		t.Fatalf("joined = %q", joined)
	}
}

func TestWidgetOverloads(t *testing.T) {
	rt := newRuntime(t)

	w, err := rt.CreateInstance(WidgetClass)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	two, err := bridge.IntArg(2).IntoPrimitive()
	if err != nil {
		t.Fatal(err)
	}
	three, err := bridge.IntArg(3).IntoPrimitive()
	if err != nil {
		t.Fatal(err)
	}
	res, err := w.Invoke("addInts", two, three)
	if err != nil {
		t.Fatalf("addInts(int, int): %v", err)
	}
	sum, err := bridge.To[int32](rt, res)
	if err != nil {
		t.Fatal(err)
	}
	res.Close()
	if sum != 5 {
		t.Fatalf("primitive sum = %d", sum)
	}

	res, err = w.Invoke("addInts", bridge.ArrayArg("lang.Integer",
		bridge.IntArg(1), bridge.IntArg(2), bridge.IntArg(3), bridge.IntArg(4)))
	if err != nil {
		t.Fatalf("addInts(Integer[]): %v", err)
	}
	sum, err = bridge.To[int32](rt, res)
	if err != nil {
		t.Fatal(err)
	}
	res.Close()
	if sum != 10 {
		t.Fatalf("array sum = %d", sum)
	}
}

func TestWidgetCollections(t *testing.T) {
	rt := newRuntime(t)

	w, err := rt.CreateInstance(WidgetClass)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	five, err := bridge.IntArg(5).IntoPrimitive()
	if err != nil {
		t.Fatal(err)
	}
	var nums []int32
	if err := rt.ChainOn(w).Invoke("numbersUntil", five).ToGo(&nums); err != nil {
		t.Fatalf("numbersUntil: %v", err)
	}
	if len(nums) != 5 || nums[0] != 0 || nums[4] != 4 {
		t.Fatalf("nums = %v", nums)
	}

	var m map[string]int32
	if err := rt.ChainOn(w).Invoke("getMap").ToGo(&m); err != nil {
		t.Fatalf("getMap: %v", err)
	}
	if m["one"] != 1 || m["two"] != 2 || len(m) != 2 {
		t.Fatalf("map = %v", m)
	}
}

func TestWidgetException(t *testing.T) {
	rt := newRuntime(t)

	w, err := rt.CreateInstance(WidgetClass)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	_, err = w.Invoke("throwException")
	if !errors.IsKind(err, errors.KindInvocationFailed) {
		t.Fatalf("expected invocation_failed, got %v", err)
	}
	var e *errors.Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *errors.Error, got %T", err)
	}
	if e.StackTrace == "" {
		t.Fatal("expected a captured runtime stack trace")
	}
}

func TestCloneIndependence(t *testing.T) {
	rt := newRuntime(t)

	w, err := rt.CreateInstance(WidgetClass, bridge.StringArg("base"))
	if err != nil {
		t.Fatal(err)
	}
	dup, err := w.Clone()
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	// The clone still reaches the same underlying object.
	var label string
	if err := rt.ChainOn(dup).Invoke("getLabel").ToGo(&label); err != nil {
		t.Fatalf("clone invoke after original close: %v", err)
	}
	if label != "base" {
		t.Fatalf("label = %q", label)
	}
	if err := dup.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestCallbackSingleDelivery(t *testing.T) {
	rt := newRuntime(t)

	em, err := rt.CreateInstance(EmitterClass)
	if err != nil {
		t.Fatal(err)
	}
	defer em.Close()

	recv, err := rt.InvokeToChannel(em, "emitOnce")
	if err != nil {
		t.Fatalf("invokeToChannel: %v", err)
	}
	defer recv.Close()

	inst, err := recv.RecvTimeout(5 * time.Second)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	defer inst.Close()
	s, err := bridge.To[string](rt, inst)
	if err != nil {
		t.Fatal(err)
	}
	if s != "hello from the runtime" {
		t.Fatalf("payload = %q", s)
	}
}

func TestCallbackOrderedStream(t *testing.T) {
	rt := newRuntime(t)

	em, err := rt.CreateInstance(EmitterClass)
	if err != nil {
		t.Fatal(err)
	}
	defer em.Close()

	recv, err := rt.InvokeToChannel(em, "emitTen")
	if err != nil {
		t.Fatal(err)
	}
	defer recv.Close()

	for i := 0; i < 10; i++ {
		inst, err := recv.RecvTimeout(5 * time.Second)
		if err != nil {
			t.Fatalf("recv %d: %v", i, err)
		}
		s, err := bridge.To[string](rt, inst)
		inst.Close()
		if err != nil {
			t.Fatal(err)
		}
		if s != fmt.Sprintf("event %d", i) {
			t.Fatalf("event %d = %q", i, s)
		}
	}
}

func TestCallbackFromRuntimeWorkers(t *testing.T) {
	rt := newRuntime(t)

	em, err := rt.CreateInstance(EmitterClass)
	if err != nil {
		t.Fatal(err)
	}
	defer em.Close()

	recv, err := rt.InitCallbackChannel(em)
	if err != nil {
		t.Fatal(err)
	}
	defer recv.Close()

	ten, err := bridge.IntArg(10).IntoPrimitive()
	if err != nil {
		t.Fatal(err)
	}
	res, err := em.Invoke("emitFromWorkers", ten)
	if err != nil {
		t.Fatalf("emitFromWorkers: %v", err)
	}
	res.Close()

	got := make([]int, 0, 10)
	for i := 0; i < 10; i++ {
		inst, err := recv.RecvTimeout(5 * time.Second)
		if err != nil {
			t.Fatalf("recv %d: %v", i, err)
		}
		n, err := bridge.To[int32](rt, inst)
		inst.Close()
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, int(n))
	}
	sort.Ints(got)
	for i, n := range got {
		if n != i {
			t.Fatalf("missing worker emission, got %v", got)
		}
	}
}

func TestConcurrentCallersOneWidget(t *testing.T) {
	rt := newRuntime(t)

	w, err := rt.CreateInstance(WidgetClass)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := rt.AttachCurrentThreadAsDaemon(); err != nil {
				errs <- err
				return
			}
			a, err := bridge.IntArg(20).IntoPrimitive()
			if err != nil {
				errs <- err
				return
			}
			b, err := bridge.IntArg(22).IntoPrimitive()
			if err != nil {
				errs <- err
				return
			}
			for i := 0; i < 25; i++ {
				res, err := w.Invoke("addInts", a, b)
				if err != nil {
					errs <- err
					return
				}
				sum, err := bridge.To[int32](rt, res)
				res.Close()
				if err != nil {
					errs <- err
					return
				}
				if sum != 42 {
					errs <- fmt.Errorf("sum = %d", sum)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}
