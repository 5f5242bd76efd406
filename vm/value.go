package vm

// Kind enumerates the type-descriptor kinds of the runtime's type system.
// The scalar kinds are the unboxed primitives; KindObject and KindArray are
// reference kinds.
type Kind uint8

const (
	KindVoid Kind = iota
	KindBool
	KindI8
	KindI16
	KindI32
	KindI64
	KindF32
	KindF64
	KindChar
	KindObject
	KindArray
)

var kindNames = [...]string{
	KindVoid: "void",
	KindBool: "boolean",
	KindI8:   "byte",
	KindI16:  "short",
	KindI32:  "int",
	KindI64:  "long",
	KindF32:  "float",
	KindF64:  "double",
	KindChar: "char",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	switch k {
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	}
	return "invalid"
}

// IsScalar reports whether k is an unboxed primitive kind.
func (k Kind) IsScalar() bool {
	return k >= KindBool && k <= KindChar
}

// TypeDesc describes a formal parameter type or a marshaled argument type.
// For KindObject, Class is the declared class name; an empty Class denotes
// the null reference, assignable to any reference type. For KindArray, Class
// names the element class.
type TypeDesc struct {
	Kind  Kind
	Class string
}

// Prim returns a primitive type descriptor.
func Prim(k Kind) TypeDesc { return TypeDesc{Kind: k} }

// Of returns an object type descriptor for the named class.
func Of(class string) TypeDesc { return TypeDesc{Kind: KindObject, Class: class} }

// ArrayOf returns an array type descriptor with the named element class.
func ArrayOf(elem string) TypeDesc { return TypeDesc{Kind: KindArray, Class: elem} }

func (d TypeDesc) String() string {
	switch d.Kind {
	case KindObject:
		if d.Class == "" {
			return "null"
		}
		return d.Class
	case KindArray:
		return d.Class + "[]"
	default:
		return d.Kind.String()
	}
}

// Value is one runtime value: an unboxed primitive scalar or an object
// reference. A KindObject value with a nil Obj is the null reference.
//
// Scalar payloads live in Num (bool, integer and char kinds; bool is 0/1)
// or Flt (float kinds). Arrays are ordinary objects whose class is an array
// class, so KindArray never appears at the Value level.
type Value struct {
	Obj  *Object
	Num  int64
	Flt  float64
	Kind Kind
}

func Bool(b bool) Value {
	n := int64(0)
	if b {
		n = 1
	}
	return Value{Kind: KindBool, Num: n}
}

func I8(n int8) Value   { return Value{Kind: KindI8, Num: int64(n)} }
func I16(n int16) Value { return Value{Kind: KindI16, Num: int64(n)} }
func I32(n int32) Value { return Value{Kind: KindI32, Num: int64(n)} }
func I64(n int64) Value { return Value{Kind: KindI64, Num: n} }
func F32(f float32) Value {
	return Value{Kind: KindF32, Flt: float64(f)}
}
func F64(f float64) Value { return Value{Kind: KindF64, Flt: f} }
func Char(c rune) Value   { return Value{Kind: KindChar, Num: int64(c)} }
func Void() Value         { return Value{Kind: KindVoid} }

// Null returns the null object reference.
func Null() Value { return Value{Kind: KindObject} }

// ObjectValue wraps an object reference.
func ObjectValue(o *Object) Value { return Value{Kind: KindObject, Obj: o} }

// IsNull reports whether v is a null (or void) reference.
func (v Value) IsNull() bool {
	return (v.Kind == KindObject && v.Obj == nil) || v.Kind == KindVoid
}

// Desc returns the type descriptor of v, used for overload resolution.
func (v Value) Desc() TypeDesc {
	if v.Kind != KindObject {
		return TypeDesc{Kind: v.Kind}
	}
	if v.Obj == nil {
		return TypeDesc{Kind: KindObject}
	}
	if v.Obj.class.Elem != "" {
		return ArrayOf(v.Obj.class.Elem)
	}
	return Of(v.Obj.class.Name)
}

// AsBool and friends read scalar payloads. They do not convert between
// kinds; the caller is expected to have checked v.Kind.
func (v Value) AsBool() bool    { return v.Num != 0 }
func (v Value) AsInt() int64    { return v.Num }
func (v Value) AsFloat() float64 { return v.Flt }
func (v Value) AsChar() rune    { return rune(v.Num) }
