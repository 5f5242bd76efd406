package bridge

import (
	"github.com/objlink/objlink/errors"
	"github.com/objlink/objlink/vm"
)

type argKind uint8

const (
	argPrimitive argKind = iota
	argValue
	argInstance
	argArray
)

// InvocationArg is one marshaled argument for a constructor or method call.
// Every arg carries enough type information (a declared class name or a
// primitive tag) for overload resolution on the runtime side; the
// primitive/boxed distinction is significant because resolution is
// overload-sensitive to it.
//
// Host scalars marshal as boxed wrapper objects by default, matching how
// untagged values behave in the managed runtime; IntoPrimitive retags a
// scalar arg to pass as the unboxed primitive instead.
type InvocationArg struct {
	value any
	inst  *Instance
	elems []InvocationArg
	prim  vm.Value
	class string
	kind  argKind
}

// StringArg marshals a host string as a managed string object.
func StringArg(s string) InvocationArg {
	return InvocationArg{kind: argValue, value: s, class: vm.ClassString}
}

// BoolArg marshals a bool, boxed.
func BoolArg(b bool) InvocationArg {
	return InvocationArg{kind: argValue, value: b, class: vm.ClassBoolean}
}

// ByteArg marshals an int8, boxed.
func ByteArg(n int8) InvocationArg {
	return InvocationArg{kind: argValue, value: n, class: vm.ClassByte}
}

// ShortArg marshals an int16, boxed.
func ShortArg(n int16) InvocationArg {
	return InvocationArg{kind: argValue, value: n, class: vm.ClassShort}
}

// IntArg marshals an int32, boxed.
func IntArg(n int32) InvocationArg {
	return InvocationArg{kind: argValue, value: n, class: vm.ClassInteger}
}

// LongArg marshals an int64, boxed.
func LongArg(n int64) InvocationArg {
	return InvocationArg{kind: argValue, value: n, class: vm.ClassLong}
}

// FloatArg marshals a float32, boxed.
func FloatArg(f float32) InvocationArg {
	return InvocationArg{kind: argValue, value: f, class: vm.ClassFloat}
}

// DoubleArg marshals a float64, boxed.
func DoubleArg(f float64) InvocationArg {
	return InvocationArg{kind: argValue, value: f, class: vm.ClassDouble}
}

// CharArg marshals a rune, boxed.
func CharArg(c rune) InvocationArg {
	return InvocationArg{kind: argValue, value: c, class: vm.ClassCharacter}
}

// ValueArg marshals an arbitrary host value as an instance of the named
// managed class. The value's shape must match the class; mismatches fail
// at marshal time with a conversion error.
func ValueArg(v any, class string) InvocationArg {
	return InvocationArg{kind: argValue, value: v, class: class}
}

// InstanceArg passes an existing handle through. The handle stays owned by
// the caller and must remain live until the call returns.
func InstanceArg(inst *Instance) InvocationArg {
	return InvocationArg{kind: argInstance, inst: inst, class: inst.ClassName()}
}

// ArrayArg marshals a homogeneous managed array of the named element class,
// populated positionally from elems. Used for variadic-style calls.
func ArrayArg(elemClass string, elems ...InvocationArg) InvocationArg {
	return InvocationArg{kind: argArray, class: elemClass, elems: elems}
}

// IntoPrimitive retags a boxed scalar arg to marshal as the runtime's
// unboxed primitive type. Only args created from host scalars can be
// retagged.
func (a InvocationArg) IntoPrimitive() (InvocationArg, error) {
	if a.kind != argValue {
		return a, errors.Conversion(a.class, nil, "only scalar args can become primitive")
	}
	kind, ok := primKindFor(a.class)
	if !ok {
		return a, errors.Conversion(a.class, a.value, "class has no primitive counterpart")
	}
	v, err := scalarFor(kind, a.value)
	if err != nil {
		return a, err
	}
	return InvocationArg{kind: argPrimitive, prim: v}, nil
}

// ClassName returns the declared class of the arg, or the primitive tag's
// type name.
func (a InvocationArg) ClassName() string {
	if a.kind == argPrimitive {
		return a.prim.Kind.String()
	}
	if a.kind == argArray {
		return a.class + "[]"
	}
	return a.class
}

var primByClass = map[string]vm.Kind{
	vm.ClassBoolean:   vm.KindBool,
	vm.ClassByte:      vm.KindI8,
	vm.ClassShort:     vm.KindI16,
	vm.ClassInteger:   vm.KindI32,
	vm.ClassLong:      vm.KindI64,
	vm.ClassFloat:     vm.KindF32,
	vm.ClassDouble:    vm.KindF64,
	vm.ClassCharacter: vm.KindChar,
}

func primKindFor(class string) (vm.Kind, bool) {
	k, ok := primByClass[class]
	return k, ok
}
