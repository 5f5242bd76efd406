package vm

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/objlink/objlink/errors"
)

// Bootstrap class names. Host applications extend the runtime by
// registering further classes next to these.
const (
	ClassObject    = "lang.Object"
	ClassString    = "lang.String"
	ClassBoolean   = "lang.Boolean"
	ClassByte      = "lang.Byte"
	ClassShort     = "lang.Short"
	ClassInteger   = "lang.Integer"
	ClassLong      = "lang.Long"
	ClassFloat     = "lang.Float"
	ClassDouble    = "lang.Double"
	ClassCharacter = "lang.Character"
	ClassList      = "util.List"
	ClassArrayList = "util.ArrayList"
	ClassMap       = "util.Map"
	ClassHashMap   = "util.HashMap"
	ClassSystem    = "lang.System"
	ClassConsole   = "io.Console"
)

var boxClasses = map[Kind]string{
	KindBool: ClassBoolean,
	KindI8:   ClassByte,
	KindI16:  ClassShort,
	KindI32:  ClassInteger,
	KindI64:  ClassLong,
	KindF32:  ClassFloat,
	KindF64:  ClassDouble,
	KindChar: ClassCharacter,
}

// BoxClassFor returns the boxed wrapper class name for a scalar kind.
func BoxClassFor(k Kind) (string, bool) {
	name, ok := boxClasses[k]
	return name, ok
}

func (vm *VM) mustClass(name string) *Class {
	c, ok := vm.class(name)
	if !ok {
		panic("bootstrap class missing: " + name)
	}
	return c
}

// NewString creates a managed string object.
func (vm *VM) NewString(s string) *Object {
	return NewObject(vm.mustClass(ClassString), s)
}

// Box wraps a scalar value in its wrapper class instance.
func (vm *VM) Box(v Value) (*Object, error) {
	name, ok := boxClasses[v.Kind]
	if !ok {
		return nil, fmt.Errorf("kind %s has no wrapper class", v.Kind)
	}
	return NewObject(vm.mustClass(name), v), nil
}

// Unbox extracts the scalar from a wrapper class instance.
func Unbox(o *Object) (Value, bool) {
	if o == nil {
		return Value{}, false
	}
	if v, ok := o.Data.(Value); ok && v.Kind.IsScalar() {
		return v, true
	}
	return Value{}, false
}

// StringData extracts the payload of a managed string.
func StringData(o *Object) (string, bool) {
	if o == nil {
		return "", false
	}
	s, ok := o.Data.(string)
	return s, ok
}

// ListElems exposes the element slice of an array or list object.
func ListElems(o *Object) ([]Value, bool) {
	if o == nil {
		return nil, false
	}
	if elems, ok := o.Data.(*[]Value); ok {
		return *elems, true
	}
	return nil, false
}

// MapEntry is one key/value pair of a managed map, in insertion order.
type MapEntry struct {
	Key Value
	Val Value
}

// MapEntries exposes the pairs of a managed map object.
func MapEntries(o *Object) ([]MapEntry, bool) {
	if o == nil {
		return nil, false
	}
	d, ok := o.Data.(*mapData)
	if !ok {
		return nil, false
	}
	entries := make([]MapEntry, len(d.pairs))
	for i, p := range d.pairs {
		entries[i] = MapEntry{Key: p.key, Val: p.val}
	}
	return entries, true
}

// NewMap allocates a managed hash map populated with the entries in order.
func (vm *VM) NewMap(entries []MapEntry) *Object {
	d := &mapData{pairs: make([]mapPair, len(entries))}
	for i, e := range entries {
		d.pairs[i] = mapPair{key: e.Key, val: e.Val}
	}
	return NewObject(vm.mustClass(ClassHashMap), d)
}

// NewArray allocates a managed array of the named element class and
// populates it positionally. Every element must be assignable to the
// element class.
func (vm *VM) NewArray(elem string, vals []Value) (*Object, error) {
	c, ok := vm.arrayClass(elem)
	if !ok {
		return nil, errors.ClassNotFound(elem)
	}
	elems := make([]Value, len(vals))
	for i, v := range vals {
		if _, ok := vm.assignDistance(v.Desc(), Of(elem)); !ok {
			return nil, errors.Conversion(elem, v.Desc().String(),
				fmt.Sprintf("array element %d is not assignable", i))
		}
		elems[i] = v
	}
	return NewObject(c, &elems), nil
}

type mapPair struct {
	key Value
	val Value
}

type mapData struct {
	pairs []mapPair
}

// valueEquals implements key equality: scalars by kind and payload, strings
// and boxes by content, other objects by identity.
func valueEquals(a, b Value) bool {
	if a.Kind.IsScalar() || b.Kind.IsScalar() {
		return a.Kind == b.Kind && a.Num == b.Num && a.Flt == b.Flt
	}
	if a.Kind != KindObject || b.Kind != KindObject {
		return false
	}
	if a.Obj == nil || b.Obj == nil {
		return a.Obj == b.Obj
	}
	if as, ok := StringData(a.Obj); ok {
		bs, ok := StringData(b.Obj)
		return ok && as == bs
	}
	if av, ok := Unbox(a.Obj); ok {
		bv, ok := Unbox(b.Obj)
		return ok && valueEquals(av, bv)
	}
	return a.Obj == b.Obj
}

// argString reads argument i as a managed string, throwing on null or a
// non-string object.
func argString(call *Call, i int) (string, error) {
	v := call.Args[i]
	if v.Kind != KindObject || v.Obj == nil {
		return "", Throwf("argument %d: expected a string, got null", i)
	}
	s, ok := StringData(v.Obj)
	if !ok {
		return "", Throwf("argument %d: expected a string, got %s", i, v.Obj.class.Name)
	}
	return s, nil
}

func (vm *VM) registerBootstrap() {
	// Root class.
	object := NewClass(ClassObject)
	object.Ctor(nil, func(call *Call) (Value, error) {
		return ObjectValue(NewObject(object, nil)), nil
	})
	object.Method(&Method{
		Name: "toString",
		Fn: func(call *Call) (Value, error) {
			return ObjectValue(vm.NewString(
				fmt.Sprintf("%s@%p", call.Recv.class.Name, call.Recv))), nil
		},
	})
	object.Method(&Method{
		Name:   "equals",
		Params: []TypeDesc{Of(ClassObject)},
		Fn: func(call *Call) (Value, error) {
			return Bool(valueEquals(ObjectValue(call.Recv), call.Args[0])), nil
		},
	})
	object.Method(&Method{
		Name: "getClass",
		Fn: func(call *Call) (Value, error) {
			return ObjectValue(vm.NewString(call.Recv.class.Name)), nil
		},
	})
	vm.root = object
	vm.classes[ClassObject] = object

	// Strings.
	str := NewClass(ClassString)
	str.Ctor([]TypeDesc{Of(ClassString)}, func(call *Call) (Value, error) {
		s, err := argString(call, 0)
		if err != nil {
			return Value{}, err
		}
		return ObjectValue(vm.NewString(s)), nil
	})
	str.Method(&Method{
		Name: "length",
		Fn: func(call *Call) (Value, error) {
			s, _ := StringData(call.Recv)
			return I32(int32(len(s))), nil
		},
	})
	str.Method(&Method{
		Name: "isEmpty",
		Fn: func(call *Call) (Value, error) {
			s, _ := StringData(call.Recv)
			return Bool(s == ""), nil
		},
	})
	str.Method(&Method{
		Name:   "split",
		Params: []TypeDesc{Of(ClassString)},
		Fn: func(call *Call) (Value, error) {
			s, _ := StringData(call.Recv)
			sep, err := argString(call, 0)
			if err != nil {
				return Value{}, err
			}
			parts := strings.Split(s, sep)
			vals := make([]Value, len(parts))
			for i, p := range parts {
				vals[i] = ObjectValue(vm.NewString(p))
			}
			arr, err := vm.NewArray(ClassString, vals)
			if err != nil {
				return Value{}, err
			}
			return ObjectValue(arr), nil
		},
	})
	str.Method(&Method{
		Name:   "concat",
		Params: []TypeDesc{Of(ClassString)},
		Fn: func(call *Call) (Value, error) {
			s, _ := StringData(call.Recv)
			other, err := argString(call, 0)
			if err != nil {
				return Value{}, err
			}
			return ObjectValue(vm.NewString(s + other)), nil
		},
	})
	str.Method(&Method{
		Name:   "startsWith",
		Params: []TypeDesc{Of(ClassString)},
		Fn: func(call *Call) (Value, error) {
			s, _ := StringData(call.Recv)
			prefix, err := argString(call, 0)
			if err != nil {
				return Value{}, err
			}
			return Bool(strings.HasPrefix(s, prefix)), nil
		},
	})
	str.Method(&Method{
		Name:   "charAt",
		Params: []TypeDesc{Prim(KindI32)},
		Fn: func(call *Call) (Value, error) {
			s, _ := StringData(call.Recv)
			i := int(call.Args[0].AsInt())
			runes := []rune(s)
			if i < 0 || i >= len(runes) {
				return Value{}, Throwf("string index %d out of range for length %d", i, len(runes))
			}
			return Char(runes[i]), nil
		},
	})
	str.Method(&Method{
		Name: "toString",
		Fn: func(call *Call) (Value, error) {
			return ObjectValue(call.Recv), nil
		},
	})
	vm.classes[ClassString] = str
	str.Super = object

	// Boxed scalar wrappers. Each has a constructor taking the unboxed
	// primitive and an accessor returning it.
	boxAccessors := map[Kind]string{
		KindBool: "booleanValue",
		KindI8:   "byteValue",
		KindI16:  "shortValue",
		KindI32:  "intValue",
		KindI64:  "longValue",
		KindF32:  "floatValue",
		KindF64:  "doubleValue",
		KindChar: "charValue",
	}
	for kind, name := range boxClasses {
		kind := kind
		box := NewClass(name)
		box.Super = object
		box.Ctor([]TypeDesc{Prim(kind)}, func(call *Call) (Value, error) {
			return ObjectValue(NewObject(box, call.Args[0])), nil
		})
		box.Method(&Method{
			Name: boxAccessors[kind],
			Fn: func(call *Call) (Value, error) {
				v, _ := Unbox(call.Recv)
				return v, nil
			},
		})
		box.Method(&Method{
			Name: "toString",
			Fn: func(call *Call) (Value, error) {
				v, _ := Unbox(call.Recv)
				var s string
				switch {
				case v.Kind == KindBool:
					s = strconv.FormatBool(v.AsBool())
				case v.Kind == KindChar:
					s = string(v.AsChar())
				case v.Kind == KindF32 || v.Kind == KindF64:
					s = strconv.FormatFloat(v.Flt, 'g', -1, 64)
				default:
					s = strconv.FormatInt(v.Num, 10)
				}
				return ObjectValue(vm.NewString(s)), nil
			},
		})
		vm.classes[name] = box
	}

	// Lists.
	list := NewClass(ClassList)
	list.Super = object
	list.Method(&Method{Name: "size", Abstract: true})
	list.Method(&Method{Name: "isEmpty", Abstract: true})
	list.Method(&Method{Name: "get", Params: []TypeDesc{Prim(KindI32)}, Abstract: true})
	list.Method(&Method{Name: "add", Params: []TypeDesc{Of(ClassObject)}, Abstract: true})
	vm.classes[ClassList] = list

	arrayList := NewClass(ClassArrayList)
	arrayList.Super = object
	arrayList.Implements(list)
	arrayList.Ctor(nil, func(call *Call) (Value, error) {
		elems := make([]Value, 0, 8)
		return ObjectValue(NewObject(arrayList, &elems)), nil
	})
	arrayList.Method(&Method{
		Name: "size",
		Fn: func(call *Call) (Value, error) {
			elems, _ := ListElems(call.Recv)
			return I32(int32(len(elems))), nil
		},
	})
	arrayList.Method(&Method{
		Name: "isEmpty",
		Fn: func(call *Call) (Value, error) {
			elems, _ := ListElems(call.Recv)
			return Bool(len(elems) == 0), nil
		},
	})
	arrayList.Method(&Method{
		Name:   "get",
		Params: []TypeDesc{Prim(KindI32)},
		Fn: func(call *Call) (Value, error) {
			elems, _ := ListElems(call.Recv)
			i := int(call.Args[0].AsInt())
			if i < 0 || i >= len(elems) {
				return Value{}, Throwf("list index %d out of range for size %d", i, len(elems))
			}
			return elems[i], nil
		},
	})
	arrayList.Method(&Method{
		Name:   "add",
		Params: []TypeDesc{Of(ClassObject)},
		Fn: func(call *Call) (Value, error) {
			elems := call.Recv.Data.(*[]Value)
			*elems = append(*elems, call.Args[0])
			return Bool(true), nil
		},
	})
	vm.classes[ClassArrayList] = arrayList

	// Maps.
	mapIface := NewClass(ClassMap)
	mapIface.Super = object
	mapIface.Method(&Method{Name: "size", Abstract: true})
	mapIface.Method(&Method{Name: "get", Params: []TypeDesc{Of(ClassObject)}, Abstract: true})
	mapIface.Method(&Method{Name: "put", Params: []TypeDesc{Of(ClassObject), Of(ClassObject)}, Abstract: true})
	vm.classes[ClassMap] = mapIface

	hashMap := NewClass(ClassHashMap)
	hashMap.Super = object
	hashMap.Implements(mapIface)
	hashMap.Ctor(nil, func(call *Call) (Value, error) {
		return ObjectValue(NewObject(hashMap, &mapData{})), nil
	})
	hashMap.Method(&Method{
		Name: "size",
		Fn: func(call *Call) (Value, error) {
			d := call.Recv.Data.(*mapData)
			return I32(int32(len(d.pairs))), nil
		},
	})
	hashMap.Method(&Method{
		Name:   "get",
		Params: []TypeDesc{Of(ClassObject)},
		Fn: func(call *Call) (Value, error) {
			d := call.Recv.Data.(*mapData)
			for _, p := range d.pairs {
				if valueEquals(p.key, call.Args[0]) {
					return p.val, nil
				}
			}
			return Null(), nil
		},
	})
	hashMap.Method(&Method{
		Name:   "put",
		Params: []TypeDesc{Of(ClassObject), Of(ClassObject)},
		Fn: func(call *Call) (Value, error) {
			d := call.Recv.Data.(*mapData)
			key, val := call.Args[0], call.Args[1]
			for i, p := range d.pairs {
				if valueEquals(p.key, key) {
					prev := p.val
					d.pairs[i].val = val
					return prev, nil
				}
			}
			d.pairs = append(d.pairs, mapPair{key: key, val: val})
			return Null(), nil
		},
	})
	hashMap.Method(&Method{
		Name:   "containsKey",
		Params: []TypeDesc{Of(ClassObject)},
		Fn: func(call *Call) (Value, error) {
			d := call.Recv.Data.(*mapData)
			for _, p := range d.pairs {
				if valueEquals(p.key, call.Args[0]) {
					return Bool(true), nil
				}
			}
			return Bool(false), nil
		},
	})
	vm.classes[ClassHashMap] = hashMap

	// Console and system services.
	console := NewClass(ClassConsole)
	console.Super = object
	console.Method(&Method{
		Name:   "println",
		Params: []TypeDesc{Of(ClassString)},
		Fn: func(call *Call) (Value, error) {
			s, err := argString(call, 0)
			if err != nil {
				return Value{}, err
			}
			fmt.Fprintln(os.Stdout, s)
			return Void(), nil
		},
	})
	vm.classes[ClassConsole] = console

	consoleOut := NewObject(console, nil)

	system := NewClass(ClassSystem)
	system.Super = object
	system.Method(&Method{
		Name:   "currentTimeMillis",
		Static: true,
		Fn: func(call *Call) (Value, error) {
			return I64(time.Now().UnixMilli()), nil
		},
	})
	system.Method(&Method{
		Name:   "nanoTime",
		Static: true,
		Fn: func(call *Call) (Value, error) {
			return I64(time.Now().UnixNano()), nil
		},
	})
	system.Field(&FieldDef{
		Name:   "out",
		Static: true,
		Get: func(call *Call) (Value, error) {
			return ObjectValue(consoleOut), nil
		},
	})
	vm.classes[ClassSystem] = system
}
