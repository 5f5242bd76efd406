// Package testbed registers demonstration classes with the managed runtime
// and exercises the full bridge surface against them end to end.
package testbed

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/objlink/objlink/bridge"
	"github.com/objlink/objlink/vm"
)

const (
	// WidgetClass exercises construction, overloads, collections, and
	// variadic-style array parameters.
	WidgetClass = "demo.Widget"
	// EmitterClass exercises the callback channel from runtime threads.
	EmitterClass = "demo.Emitter"
)

var registerOnce sync.Once

// Register installs the demo classes into the runtime behind the handle.
// Safe to call from multiple tests; the classes are registered once.
func Register(rt *bridge.Runtime) error {
	var err error
	registerOnce.Do(func() {
		if err = rt.RegisterClass(widgetClass()); err != nil {
			return
		}
		err = rt.RegisterClass(emitterClass())
	})
	return err
}

type widgetState struct {
	label string
}

func arg(call *vm.Call, i int) vm.Value { return call.Args[i] }

func stringArg(call *vm.Call, i int) string {
	s, _ := vm.StringData(arg(call, i).Obj)
	return s
}

func widgetClass() *vm.Class {
	c := vm.NewClass(WidgetClass)

	c.Ctor(nil, func(call *vm.Call) (vm.Value, error) {
		return vm.ObjectValue(vm.NewObject(c, &widgetState{})), nil
	})
	c.Ctor([]vm.TypeDesc{vm.Of(vm.ClassString)}, func(call *vm.Call) (vm.Value, error) {
		return vm.ObjectValue(vm.NewObject(c, &widgetState{label: stringArg(call, 0)})), nil
	})
	c.Ctor([]vm.TypeDesc{vm.ArrayOf(vm.ClassString)}, func(call *vm.Call) (vm.Value, error) {
		elems, _ := vm.ListElems(arg(call, 0).Obj)
		parts := make([]string, len(elems))
		for i, e := range elems {
			parts[i], _ = vm.StringData(e.Obj)
		}
		return vm.ObjectValue(vm.NewObject(c, &widgetState{label: strings.Join(parts, ", ")})), nil
	})

	c.Method(&vm.Method{
		Name: "getLabel",
		Fn: func(call *vm.Call) (vm.Value, error) {
			st := call.Recv.Data.(*widgetState)
			return vm.ObjectValue(call.Env.VM().NewString(st.label)), nil
		},
	})
	c.Method(&vm.Method{
		Name:   "appendToLabel",
		Params: []vm.TypeDesc{vm.Of(vm.ClassString)},
		Fn: func(call *vm.Call) (vm.Value, error) {
			st := call.Recv.Data.(*widgetState)
			st.label += stringArg(call, 0)
			return vm.ObjectValue(call.Env.VM().NewString(st.label)), nil
		},
	})
	c.Method(&vm.Method{
		Name:   "join",
		Params: []vm.TypeDesc{vm.ArrayOf(vm.ClassString)},
		Fn: func(call *vm.Call) (vm.Value, error) {
			elems, _ := vm.ListElems(arg(call, 0).Obj)
			parts := make([]string, len(elems))
			for i, e := range elems {
				parts[i], _ = vm.StringData(e.Obj)
			}
			return vm.ObjectValue(call.Env.VM().NewString(strings.Join(parts, ", "))), nil
		},
	})

	// Overload pair: primitive ints vs a wrapper array.
	c.Method(&vm.Method{
		Name:   "addInts",
		Params: []vm.TypeDesc{vm.Prim(vm.KindI32), vm.Prim(vm.KindI32)},
		Fn: func(call *vm.Call) (vm.Value, error) {
			return vm.I32(int32(arg(call, 0).AsInt() + arg(call, 1).AsInt())), nil
		},
	})
	c.Method(&vm.Method{
		Name:   "addInts",
		Params: []vm.TypeDesc{vm.ArrayOf(vm.ClassInteger)},
		Fn: func(call *vm.Call) (vm.Value, error) {
			elems, _ := vm.ListElems(arg(call, 0).Obj)
			var sum int64
			for _, e := range elems {
				v, ok := vm.Unbox(e.Obj)
				if !ok {
					return vm.Value{}, vm.Throwf("addInts: element is not a number")
				}
				sum += v.AsInt()
			}
			return vm.I32(int32(sum)), nil
		},
	})

	c.Method(&vm.Method{
		Name:   "numbersUntil",
		Params: []vm.TypeDesc{vm.Prim(vm.KindI32)},
		Fn: func(call *vm.Call) (vm.Value, error) {
			n := arg(call, 0).AsInt()
			if n < 0 {
				return vm.Value{}, vm.Throwf("numbersUntil: negative bound %d", n)
			}
			list, err := call.Env.VM().Lookup(vm.ClassArrayList)
			if err != nil {
				return vm.Value{}, err
			}
			elems := make([]vm.Value, n)
			for i := range elems {
				box, err := call.Env.VM().Box(vm.I32(int32(i)))
				if err != nil {
					return vm.Value{}, err
				}
				elems[i] = vm.ObjectValue(box)
			}
			return vm.ObjectValue(vm.NewObject(list, &elems)), nil
		},
	})

	c.Method(&vm.Method{
		Name: "getMap",
		Fn: func(call *vm.Call) (vm.Value, error) {
			machine := call.Env.VM()
			entries := make([]vm.MapEntry, 0, 2)
			for i, key := range []string{"one", "two"} {
				box, err := machine.Box(vm.I32(int32(i + 1)))
				if err != nil {
					return vm.Value{}, err
				}
				entries = append(entries, vm.MapEntry{
					Key: vm.ObjectValue(machine.NewString(key)),
					Val: vm.ObjectValue(box),
				})
			}
			return vm.ObjectValue(machine.NewMap(entries)), nil
		},
	})

	c.Method(&vm.Method{
		Name: "throwException",
		Fn: func(call *vm.Call) (vm.Value, error) {
			return vm.Value{}, vm.Throwf("widget deliberately failed")
		},
	})

	return c
}

type emitterState struct {
	token atomic.Int64
}

func emitterClass() *vm.Class {
	c := vm.NewClass(EmitterClass)

	c.Ctor(nil, func(call *vm.Call) (vm.Value, error) {
		return vm.ObjectValue(vm.NewObject(c, &emitterState{})), nil
	})

	c.Method(&vm.Method{
		Name:   "initializeCallbackChannel",
		Params: []vm.TypeDesc{vm.Prim(vm.KindI64)},
		Fn: func(call *vm.Call) (vm.Value, error) {
			st := call.Recv.Data.(*emitterState)
			st.token.Store(arg(call, 0).AsInt())
			return vm.Void(), nil
		},
	})

	c.Method(&vm.Method{
		Name: "emitOnce",
		Fn: func(call *vm.Call) (vm.Value, error) {
			st := call.Recv.Data.(*emitterState)
			s := call.Env.VM().NewString("hello from the runtime")
			return vm.Void(), call.Env.EmitCallback(st.token.Load(), vm.ObjectValue(s))
		},
	})

	c.Method(&vm.Method{
		Name: "emitTen",
		Fn: func(call *vm.Call) (vm.Value, error) {
			st := call.Recv.Data.(*emitterState)
			for i := 0; i < 10; i++ {
				s := call.Env.VM().NewString(fmt.Sprintf("event %d", i))
				if err := call.Env.EmitCallback(st.token.Load(), vm.ObjectValue(s)); err != nil {
					return vm.Value{}, err
				}
			}
			return vm.Void(), nil
		},
	})

	// emitFromWorkers spawns runtime-side worker threads that each emit one
	// numbered event, mirroring callbacks arriving from threads the host
	// never attached.
	c.Method(&vm.Method{
		Name:   "emitFromWorkers",
		Params: []vm.TypeDesc{vm.Prim(vm.KindI32)},
		Fn: func(call *vm.Call) (vm.Value, error) {
			st := call.Recv.Data.(*emitterState)
			machine := call.Env.VM()
			n := int(arg(call, 0).AsInt())
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					v := vm.I32(int32(i))
					box, err := machine.Box(v)
					if err != nil {
						return
					}
					_ = call.Env.EmitCallback(st.token.Load(), vm.ObjectValue(box))
				}(i)
			}
			wg.Wait()
			return vm.Void(), nil
		},
	})

	return c
}
