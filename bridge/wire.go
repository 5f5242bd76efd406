package bridge

import (
	"math"

	"github.com/objlink/objlink/errors"
	"github.com/objlink/objlink/vm"
)

// to-wire marshaling: host InvocationArgs become runtime values paired with
// the type descriptors overload resolution runs on.

func marshalArgs(env *vm.Env, args []InvocationArg) ([]vm.TypeDesc, []vm.Value, error) {
	descs := make([]vm.TypeDesc, len(args))
	vals := make([]vm.Value, len(args))
	for i, a := range args {
		d, v, err := marshalArg(env, a)
		if err != nil {
			return nil, nil, err
		}
		descs[i] = d
		vals[i] = v
	}
	return descs, vals, nil
}

func marshalArg(env *vm.Env, a InvocationArg) (vm.TypeDesc, vm.Value, error) {
	switch a.kind {
	case argPrimitive:
		return vm.TypeDesc{Kind: a.prim.Kind}, a.prim, nil

	case argValue:
		machine := env.VM()
		if _, err := machine.Lookup(a.class); err != nil {
			return vm.TypeDesc{}, vm.Value{}, err
		}
		if a.class == vm.ClassString {
			switch s := a.value.(type) {
			case string:
				return vm.Of(a.class), vm.ObjectValue(machine.NewString(s)), nil
			case []byte:
				return vm.Of(a.class), vm.ObjectValue(machine.NewString(string(s))), nil
			}
			return vm.TypeDesc{}, vm.Value{}, errors.Conversion(a.class, a.value, "host value is not a string")
		}
		if kind, ok := primKindFor(a.class); ok {
			scalar, err := scalarFor(kind, a.value)
			if err != nil {
				return vm.TypeDesc{}, vm.Value{}, err
			}
			boxed, err := machine.Box(scalar)
			if err != nil {
				return vm.TypeDesc{}, vm.Value{}, errors.Wrap(errors.KindConversionError, err, "box argument")
			}
			return vm.Of(a.class), vm.ObjectValue(boxed), nil
		}
		return vm.TypeDesc{}, vm.Value{}, errors.Conversion(a.class, a.value,
			"no conversion from host value to this class")

	case argInstance:
		if err := a.inst.guard(); err != nil {
			return vm.TypeDesc{}, vm.Value{}, err
		}
		obj, declared, err := env.Deref(a.inst.ref)
		if err != nil {
			return vm.TypeDesc{}, vm.Value{}, err
		}
		if declared.Elem != "" {
			return vm.ArrayOf(declared.Elem), vm.ObjectValue(obj), nil
		}
		return vm.Of(declared.Name), vm.ObjectValue(obj), nil

	case argArray:
		vals := make([]vm.Value, len(a.elems))
		for i, e := range a.elems {
			_, v, err := marshalArg(env, e)
			if err != nil {
				return vm.TypeDesc{}, vm.Value{}, err
			}
			vals[i] = v
		}
		arr, err := env.VM().NewArray(a.class, vals)
		if err != nil {
			return vm.TypeDesc{}, vm.Value{}, err
		}
		return vm.ArrayOf(a.class), vm.ObjectValue(arr), nil
	}

	return vm.TypeDesc{}, vm.Value{}, errors.Conversion(a.class, a.value, "unknown argument form")
}

// scalarFor converts a host scalar to a runtime value of the given kind.
// Narrowing is checked: values that do not fit the target kind fail with
// a numeric overflow rather than truncating.
func scalarFor(kind vm.Kind, v any) (vm.Value, error) {
	switch kind {
	case vm.KindBool:
		if b, ok := v.(bool); ok {
			return vm.Bool(b), nil
		}

	case vm.KindI8, vm.KindI16, vm.KindI32, vm.KindI64, vm.KindChar:
		n, ok := intFrom(v)
		if !ok {
			break
		}
		lo, hi := intRange(kind)
		if n < lo || n > hi {
			return vm.Value{}, errors.NumericOverflow(n, kind.String())
		}
		return vm.Value{Kind: kind, Num: n}, nil

	case vm.KindF32:
		switch f := v.(type) {
		case float32:
			return vm.F32(f), nil
		case float64:
			if f > math.MaxFloat32 || f < -math.MaxFloat32 {
				return vm.Value{}, errors.NumericOverflow(f, kind.String())
			}
			return vm.F32(float32(f)), nil
		}

	case vm.KindF64:
		switch f := v.(type) {
		case float64:
			return vm.F64(f), nil
		case float32:
			return vm.F64(float64(f)), nil
		}
	}

	return vm.Value{}, errors.Conversion(kind.String(), v, "host value does not match scalar kind")
}

func intFrom(v any) (int64, bool) {
	switch n := v.(type) {
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	}
	return 0, false
}

func intRange(kind vm.Kind) (int64, int64) {
	switch kind {
	case vm.KindI8:
		return math.MinInt8, math.MaxInt8
	case vm.KindI16:
		return math.MinInt16, math.MaxInt16
	case vm.KindI32:
		return math.MinInt32, math.MaxInt32
	case vm.KindChar:
		// Code points are non-negative.
		return 0, math.MaxInt32
	default:
		return math.MinInt64, math.MaxInt64
	}
}
