package bridge

import (
	"math"
	"reflect"

	"github.com/objlink/objlink/errors"
	"github.com/objlink/objlink/vm"
)

// ToGo materializes the managed object behind the handle into a host value,
// writing through the pointer in out. Strings, wrapper scalars, arrays,
// lists, and maps convert structurally; anything else fails with a defined
// conversion error. A null reference converts to nil only when the target
// is a pointer, slice, or map; scalar targets reject null.
func (r *Runtime) ToGo(inst *Instance, out any) error {
	if err := inst.guard(); err != nil {
		return err
	}
	env, err := r.attach(true)
	if err != nil {
		return err
	}
	obj, _, err := env.Deref(inst.ref)
	if err != nil {
		return err
	}
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.InvalidCast(inst.className, "non-pointer destination")
	}
	return assignObject(obj, rv.Elem(), inst.className)
}

// To materializes the handle into a value of type T. It exists so call
// sites can read results without declaring a destination variable first.
func To[T any](r *Runtime, inst *Instance) (T, error) {
	var out T
	err := r.ToGo(inst, &out)
	return out, err
}

func assignObject(obj *vm.Object, dst reflect.Value, class string) error {
	if obj == nil {
		switch dst.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
			dst.Set(reflect.Zero(dst.Type()))
			return nil
		}
		return errors.NullResult(dst.Type().String())
	}
	if dst.Kind() == reflect.Pointer {
		p := reflect.New(dst.Type().Elem())
		if err := assignObject(obj, p.Elem(), class); err != nil {
			return err
		}
		dst.Set(p)
		return nil
	}
	if s, ok := vm.StringData(obj); ok {
		return assignString(s, dst, class)
	}
	if v, ok := vm.Unbox(obj); ok {
		return assignScalar(v, dst, class)
	}
	if elems, ok := vm.ListElems(obj); ok {
		return assignSlice(elems, dst, class)
	}
	if entries, ok := vm.MapEntries(obj); ok {
		return assignMap(entries, dst, class)
	}
	return errors.InvalidCast(class, dst.Type().String())
}

func assignString(s string, dst reflect.Value, class string) error {
	switch {
	case dst.Kind() == reflect.String:
		dst.SetString(s)
	case dst.Type() == reflect.TypeOf([]byte(nil)):
		dst.SetBytes([]byte(s))
	case dst.Kind() == reflect.Interface && dst.NumMethod() == 0:
		dst.Set(reflect.ValueOf(s))
	default:
		return errors.InvalidCast(class, dst.Type().String())
	}
	return nil
}

func assignScalar(v vm.Value, dst reflect.Value, class string) error {
	if dst.Kind() == reflect.Interface && dst.NumMethod() == 0 {
		dst.Set(reflect.ValueOf(nativeScalar(v)))
		return nil
	}
	switch v.Kind {
	case vm.KindBool:
		if dst.Kind() != reflect.Bool {
			return errors.InvalidCast(class, dst.Type().String())
		}
		dst.SetBool(v.AsBool())
	case vm.KindI8, vm.KindI16, vm.KindI32, vm.KindI64, vm.KindChar:
		return assignInt(v.AsInt(), dst, class)
	case vm.KindF32, vm.KindF64:
		switch dst.Kind() {
		case reflect.Float32, reflect.Float64:
			f := v.AsFloat()
			if dst.Kind() == reflect.Float32 && !math.IsInf(f, 0) && math.Abs(f) > math.MaxFloat32 {
				return errors.NumericOverflow(f, dst.Type().String())
			}
			dst.SetFloat(f)
		default:
			return errors.InvalidCast(class, dst.Type().String())
		}
	default:
		return errors.InvalidCast(class, dst.Type().String())
	}
	return nil
}

func assignInt(n int64, dst reflect.Value, class string) error {
	switch dst.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if dst.OverflowInt(n) {
			return errors.NumericOverflow(n, dst.Type().String())
		}
		dst.SetInt(n)
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		if n < 0 || dst.OverflowUint(uint64(n)) {
			return errors.NumericOverflow(n, dst.Type().String())
		}
		dst.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		dst.SetFloat(float64(n))
	default:
		return errors.InvalidCast(class, dst.Type().String())
	}
	return nil
}

// nativeScalar picks the host type an untyped destination receives.
func nativeScalar(v vm.Value) any {
	switch v.Kind {
	case vm.KindBool:
		return v.AsBool()
	case vm.KindI8:
		return int8(v.AsInt())
	case vm.KindI16:
		return int16(v.AsInt())
	case vm.KindI32:
		return int32(v.AsInt())
	case vm.KindI64:
		return v.AsInt()
	case vm.KindF32:
		return float32(v.AsFloat())
	case vm.KindF64:
		return v.AsFloat()
	case vm.KindChar:
		return v.AsChar()
	}
	return nil
}

func assignSlice(elems []vm.Value, dst reflect.Value, class string) error {
	if dst.Kind() == reflect.Interface && dst.NumMethod() == 0 {
		out := make([]any, len(elems))
		for i, e := range elems {
			var cell any
			if err := assignValue(e, reflect.ValueOf(&cell).Elem(), class); err != nil {
				return err
			}
			out[i] = cell
		}
		dst.Set(reflect.ValueOf(out))
		return nil
	}
	if dst.Kind() != reflect.Slice {
		return errors.InvalidCast(class, dst.Type().String())
	}
	out := reflect.MakeSlice(dst.Type(), len(elems), len(elems))
	for i, e := range elems {
		if err := assignValue(e, out.Index(i), class); err != nil {
			return err
		}
	}
	dst.Set(out)
	return nil
}

func assignMap(entries []vm.MapEntry, dst reflect.Value, class string) error {
	mapType := dst.Type()
	if dst.Kind() == reflect.Interface && dst.NumMethod() == 0 {
		mapType = reflect.TypeOf(map[string]any(nil))
	} else if dst.Kind() != reflect.Map {
		return errors.InvalidCast(class, dst.Type().String())
	}
	out := reflect.MakeMapWithSize(mapType, len(entries))
	for _, e := range entries {
		k := reflect.New(mapType.Key()).Elem()
		if err := assignValue(e.Key, k, class); err != nil {
			return err
		}
		v := reflect.New(mapType.Elem()).Elem()
		if err := assignValue(e.Val, v, class); err != nil {
			return err
		}
		out.SetMapIndex(k, v)
	}
	dst.Set(out)
	return nil
}

// assignValue routes one managed value, scalar or reference, into dst.
func assignValue(v vm.Value, dst reflect.Value, class string) error {
	if v.Kind == vm.KindObject || v.Kind == vm.KindArray {
		return assignObject(v.Obj, dst, class)
	}
	if v.Kind == vm.KindVoid {
		return errors.NullResult(dst.Type().String())
	}
	if dst.Kind() == reflect.Interface && dst.NumMethod() == 0 {
		dst.Set(reflect.ValueOf(nativeScalar(v)))
		return nil
	}
	return assignScalar(v, dst, class)
}
