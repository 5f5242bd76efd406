package vm

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/objlink/objlink/errors"
)

func attach(t *testing.T, rt *VM, id int64) *Env {
	t.Helper()
	env, err := rt.Attach(id)
	if err != nil {
		t.Fatalf("attach thread %d: %v", id, err)
	}
	return env
}

func newString(t *testing.T, env *Env, s string) Ref {
	t.Helper()
	arg := ObjectValue(env.VM().NewString(s))
	ref, err := env.NewInstance(ClassString, []TypeDesc{Of(ClassString)}, []Value{arg})
	if err != nil {
		t.Fatalf("new string %q: %v", s, err)
	}
	return ref
}

func TestAttachDetach(t *testing.T) {
	rt := New(Options{})

	env := attach(t, rt, 7)
	if _, err := rt.Attach(7); err == nil {
		t.Fatal("double attach succeeded")
	}
	if err := rt.Detach(7); err != nil {
		t.Fatalf("detach: %v", err)
	}
	if err := rt.Detach(7); err == nil {
		t.Fatal("double detach succeeded")
	}

	// A detached environment must refuse further calls.
	if _, err := env.StaticClass(ClassSystem); !errors.IsKind(err, errors.KindRuntimeUnavailable) {
		t.Fatalf("expected runtime_unavailable after detach, got %v", err)
	}
}

func TestInstantiateAndInvoke(t *testing.T) {
	rt := New(Options{})
	env := attach(t, rt, 1)

	ref := newString(t, env, "hello world")

	res, err := env.Invoke(ref, "length", nil, nil)
	if err != nil {
		t.Fatalf("invoke length: %v", err)
	}
	obj, _, err := env.Deref(res)
	if err != nil {
		t.Fatal(err)
	}
	v, ok := Unbox(obj)
	if !ok || v.AsInt() != 11 {
		t.Fatalf("length = %v", v)
	}
}

func TestInvokeUnknownMethod(t *testing.T) {
	rt := New(Options{})
	env := attach(t, rt, 1)
	ref := newString(t, env, "x")

	_, err := env.Invoke(ref, "explode", []TypeDesc{Prim(KindI32)}, []Value{I32(1)})
	if !errors.IsKind(err, errors.KindMethodNotFound) {
		t.Fatalf("expected method_not_found, got %v", err)
	}
	be := err.(*errors.Error)
	if be.Member != "explode" || len(be.ArgTypes) != 1 || be.ArgTypes[0] != "int" {
		t.Fatalf("error context incomplete: %+v", be)
	}
}

func TestUnknownClass(t *testing.T) {
	rt := New(Options{})
	env := attach(t, rt, 1)

	_, err := env.NewInstance("no.such.Class", nil, nil)
	if !errors.IsKind(err, errors.KindClassNotFound) {
		t.Fatalf("expected class_not_found, got %v", err)
	}
}

func TestOverloadPrimitiveVsBoxed(t *testing.T) {
	rt := New(Options{})

	probe := NewClass("probe.Overloads")
	probe.Ctor(nil, func(call *Call) (Value, error) {
		return ObjectValue(NewObject(probe, nil)), nil
	})
	probe.Method(&Method{
		Name:   "pick",
		Params: []TypeDesc{Prim(KindI32)},
		Fn: func(call *Call) (Value, error) {
			return ObjectValue(rt.NewString("primitive")), nil
		},
	})
	probe.Method(&Method{
		Name:   "pick",
		Params: []TypeDesc{Of(ClassInteger)},
		Fn: func(call *Call) (Value, error) {
			return ObjectValue(rt.NewString("boxed")), nil
		},
	})
	probe.Method(&Method{
		Name:   "pick",
		Params: []TypeDesc{Of(ClassObject)},
		Fn: func(call *Call) (Value, error) {
			return ObjectValue(rt.NewString("object")), nil
		},
	})
	if err := rt.Register(probe); err != nil {
		t.Fatal(err)
	}

	env := attach(t, rt, 1)
	ref, err := env.NewInstance("probe.Overloads", nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	get := func(descs []TypeDesc, args []Value) string {
		t.Helper()
		res, err := env.Invoke(ref, "pick", descs, args)
		if err != nil {
			t.Fatalf("pick: %v", err)
		}
		obj, _, _ := env.Deref(res)
		s, _ := StringData(obj)
		return s
	}

	if got := get([]TypeDesc{Prim(KindI32)}, []Value{I32(5)}); got != "primitive" {
		t.Fatalf("unboxed int resolved to %q", got)
	}

	boxed, err := rt.Box(I32(5))
	if err != nil {
		t.Fatal(err)
	}
	if got := get([]TypeDesc{Of(ClassInteger)}, []Value{ObjectValue(boxed)}); got != "boxed" {
		t.Fatalf("boxed int resolved to %q", got)
	}

	str := rt.NewString("s")
	if got := get([]TypeDesc{Of(ClassString)}, []Value{ObjectValue(str)}); got != "object" {
		t.Fatalf("string resolved to %q", got)
	}
}

func TestCastScopesResolution(t *testing.T) {
	rt := New(Options{})
	env := attach(t, rt, 1)

	mapRef, err := env.NewInstance(ClassHashMap, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	cast, err := env.Cast(mapRef, ClassMap)
	if err != nil {
		t.Fatalf("cast to interface: %v", err)
	}
	name, err := env.ClassName(cast)
	if err != nil || name != ClassMap {
		t.Fatalf("declared class after cast = %q, %v", name, err)
	}

	// Interface methods resolve and dispatch to the concrete class.
	res, err := env.Invoke(cast, "size", nil, nil)
	if err != nil {
		t.Fatalf("size through interface: %v", err)
	}
	obj, _, _ := env.Deref(res)
	if v, _ := Unbox(obj); v.AsInt() != 0 {
		t.Fatalf("size = %v", v)
	}

	// containsKey is declared only on the concrete class, so it is out of
	// scope through the interface handle.
	strKey := ObjectValue(rt.NewString("k"))
	_, err = env.Invoke(cast, "containsKey", []TypeDesc{Of(ClassString)}, []Value{strKey})
	if !errors.IsKind(err, errors.KindMethodNotFound) {
		t.Fatalf("expected method_not_found through interface handle, got %v", err)
	}
}

func TestIllegalCast(t *testing.T) {
	rt := New(Options{})
	env := attach(t, rt, 1)

	ref := newString(t, env, "not a list")
	_, err := env.Cast(ref, ClassList)
	if !errors.IsKind(err, errors.KindIllegalCast) {
		t.Fatalf("expected illegal_cast, got %v", err)
	}
}

func TestCastToUnknownClass(t *testing.T) {
	rt := New(Options{})
	env := attach(t, rt, 1)

	ref := newString(t, env, "x")
	if _, err := env.Cast(ref, "no.such.Class"); !errors.IsKind(err, errors.KindClassNotFound) {
		t.Fatalf("expected class_not_found, got %v", err)
	}
}

func TestExceptionBecomesInvocationFailure(t *testing.T) {
	rt := New(Options{})

	boom := NewClass("probe.Boom")
	boom.Ctor(nil, func(call *Call) (Value, error) {
		return ObjectValue(NewObject(boom, nil)), nil
	})
	boom.Method(&Method{
		Name: "throwing",
		Fn: func(call *Call) (Value, error) {
			return Value{}, Throwf("deliberate failure %d", 42)
		},
	})
	boom.Method(&Method{
		Name: "panicking",
		Fn: func(call *Call) (Value, error) {
			panic("panicked inside the runtime")
		},
	})
	if err := rt.Register(boom); err != nil {
		t.Fatal(err)
	}

	env := attach(t, rt, 1)
	ref, err := env.NewInstance("probe.Boom", nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = env.Invoke(ref, "throwing", nil, nil)
	if !errors.IsKind(err, errors.KindInvocationFailed) {
		t.Fatalf("expected invocation_failed, got %v", err)
	}
	be := err.(*errors.Error)
	if be.Detail != "deliberate failure 42" {
		t.Fatalf("message lost: %q", be.Detail)
	}
	if be.StackTrace == "" {
		t.Fatal("stack trace not captured")
	}

	_, err = env.Invoke(ref, "panicking", nil, nil)
	if !errors.IsKind(err, errors.KindInvocationFailed) {
		t.Fatalf("panic not recovered as invocation_failed: %v", err)
	}
}

func TestStaticClassAndField(t *testing.T) {
	rt := New(Options{})
	env := attach(t, rt, 1)

	sys, err := env.StaticClass(ClassSystem)
	if err != nil {
		t.Fatal(err)
	}

	millis, err := env.Invoke(sys, "currentTimeMillis", nil, nil)
	if err != nil {
		t.Fatalf("static invoke: %v", err)
	}
	obj, _, _ := env.Deref(millis)
	v, ok := Unbox(obj)
	if !ok || v.Kind != KindI64 || v.AsInt() <= 0 {
		t.Fatalf("currentTimeMillis = %v", v)
	}

	out, err := env.GetField(sys, "out")
	if err != nil {
		t.Fatalf("static field: %v", err)
	}
	name, _ := env.ClassName(out)
	if name != ClassConsole {
		t.Fatalf("out field class = %q", name)
	}
}

func TestArrays(t *testing.T) {
	rt := New(Options{})
	env := attach(t, rt, 1)

	arr, err := rt.NewArray(ClassString, []Value{
		ObjectValue(rt.NewString("a")),
		ObjectValue(rt.NewString("b")),
	})
	if err != nil {
		t.Fatal(err)
	}
	if arr.Class().Name != "lang.String[]" || arr.Class().Elem != ClassString {
		t.Fatalf("array class = %+v", arr.Class())
	}

	ref, err := env.NewRef(arr)
	if err != nil {
		t.Fatal(err)
	}
	res, err := env.Invoke(ref, "length", nil, nil)
	if err != nil {
		t.Fatalf("array length: %v", err)
	}
	obj, _, _ := env.Deref(res)
	if v, _ := Unbox(obj); v.AsInt() != 2 {
		t.Fatalf("length = %v", v)
	}

	// Heterogeneous elements are rejected.
	_, err = rt.NewArray(ClassString, []Value{I32(1)})
	if !errors.IsKind(err, errors.KindConversionError) {
		t.Fatalf("expected conversion_error, got %v", err)
	}
}

func TestStringSplitReturnsArray(t *testing.T) {
	rt := New(Options{})
	env := attach(t, rt, 1)

	ref := newString(t, env, "a b c")
	sep := ObjectValue(rt.NewString(" "))
	res, err := env.Invoke(ref, "split", []TypeDesc{Of(ClassString)}, []Value{sep})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	obj, _, _ := env.Deref(res)
	elems, ok := ListElems(obj)
	if !ok || len(elems) != 3 {
		t.Fatalf("split produced %d elements", len(elems))
	}
	var parts []string
	for _, e := range elems {
		s, _ := StringData(e.Obj)
		parts = append(parts, s)
	}
	if strings.Join(parts, ",") != "a,b,c" {
		t.Fatalf("split parts = %v", parts)
	}
}

func TestShutdownUnderEmissionLoad(t *testing.T) {
	rt := New(Options{})
	release := make(chan struct{})
	rt.SetCallbackSink(func(token int64, ref Ref) { <-release })
	env := attach(t, rt, 1)

	// Saturate the queue from several runtime threads while the sink holds
	// the dispatcher, so emitters are blocked mid-send when shutdown runs.
	var sent atomic.Int64
	var wg sync.WaitGroup
	panics := make(chan any, 4)
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					panics <- r
				}
			}()
			for i := 0; i < 600; i++ {
				if err := env.EmitCallback(1, I32(int32(i))); err != nil {
					return
				}
				sent.Add(1)
			}
		}()
	}

	deadline := time.Now().Add(5 * time.Second)
	for sent.Load() < 1025 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	rt.Shutdown()
	close(release)
	wg.Wait()
	close(panics)
	for r := range panics {
		t.Fatalf("emission panicked during shutdown: %v", r)
	}
	if err := env.EmitCallback(1, I32(0)); err == nil {
		t.Fatal("emission succeeded after shutdown")
	}
}

func TestShutdownInvalidatesEnvs(t *testing.T) {
	rt := New(Options{})
	env := attach(t, rt, 1)

	rt.Shutdown()

	if _, err := env.StaticClass(ClassSystem); !errors.IsKind(err, errors.KindRuntimeUnavailable) {
		t.Fatalf("expected runtime_unavailable after shutdown, got %v", err)
	}
	if _, err := rt.Attach(2); err == nil {
		t.Fatal("attach succeeded after shutdown")
	}
}
