package vm

// Object is one managed object. The runtime owns every Object; the host only
// ever sees Ref tokens minted by the reference table.
//
// Data holds the class-specific payload: string for lang.String, a scalar
// Value for the boxed wrappers, *[]Value for arrays and lists, and whatever
// a registered host class stores for its own instances.
type Object struct {
	class *Class
	Data  any
}

// NewObject creates an object of the given class with the given payload.
func NewObject(c *Class, data any) *Object {
	return &Object{class: c, Data: data}
}

// Class returns the object's runtime class.
func (o *Object) Class() *Class { return o.class }

// staticRecv marks an object that stands for a class itself rather than an
// instance; invocations through it resolve static members only.
type staticRecv struct{}

// IsStatic reports whether o is a static-class handle.
func (o *Object) IsStatic() bool {
	_, ok := o.Data.(staticRecv)
	return ok
}

// Call carries the invocation context handed to a method body.
type Call struct {
	Env  *Env
	Recv *Object // nil for static methods and constructors
	Args []Value
}

// Method is one constructor, static method, or instance method of a class.
// An Abstract method declares a signature on an interface or base class and
// has no body; invocation requires a concrete override on the runtime class.
type Method struct {
	Name     string
	Params   []TypeDesc
	Static   bool
	Abstract bool
	Fn       func(*Call) (Value, error)
}

// FieldDef is one static or instance field. Get reads the current value;
// Set is optional and nil for read-only fields.
type FieldDef struct {
	Name   string
	Static bool
	Get    func(*Call) (Value, error)
	Set    func(*Call, Value) error
}

// Class describes one class of the runtime's type system: single
// inheritance, any number of interfaces, overloaded constructors and
// methods, static and instance fields. Array classes are synthesized on
// demand and carry their element class name in Elem.
type Class struct {
	Name       string
	Super      *Class
	Interfaces []*Class
	Elem       string

	ctors   []*Method
	methods map[string][]*Method
	fields  map[string]*FieldDef
}

// NewClass creates an empty class. Registration with a VM wires the implicit
// root superclass for classes that declare none.
func NewClass(name string) *Class {
	return &Class{
		Name:    name,
		methods: make(map[string][]*Method),
		fields:  make(map[string]*FieldDef),
	}
}

// Extends sets the superclass.
func (c *Class) Extends(super *Class) *Class {
	c.Super = super
	return c
}

// Implements adds implemented interfaces.
func (c *Class) Implements(ifaces ...*Class) *Class {
	c.Interfaces = append(c.Interfaces, ifaces...)
	return c
}

// Ctor adds a constructor overload. The body receives the marshaled
// arguments and returns the new instance's payload as an object value.
func (c *Class) Ctor(params []TypeDesc, fn func(*Call) (Value, error)) *Class {
	c.ctors = append(c.ctors, &Method{Name: "<init>", Params: params, Fn: fn})
	return c
}

// Method adds a method overload.
func (c *Class) Method(m *Method) *Class {
	c.methods[m.Name] = append(c.methods[m.Name], m)
	return c
}

// Field adds a field definition.
func (c *Class) Field(f *FieldDef) *Class {
	c.fields[f.Name] = f
	return c
}

// AssignableTo reports whether a value of class c may be used where target
// is expected, walking the superclass chain and all interface closures.
func (c *Class) AssignableTo(target *Class) bool {
	_, ok := c.distanceTo(target)
	return ok
}

// distanceTo returns the length of the shortest inheritance path from c to
// target. Distance 0 means c == target. Used by overload resolution to
// prefer the most specific applicable member.
func (c *Class) distanceTo(target *Class) (int, bool) {
	if target == nil {
		return 0, false
	}
	best := -1
	depth := 0
	for cur := c; cur != nil; cur = cur.Super {
		if cur == target {
			if best < 0 || depth < best {
				best = depth
			}
		}
		for _, iface := range cur.Interfaces {
			if d, ok := iface.distanceTo(target); ok {
				if best < 0 || depth+1+d < best {
					best = depth + 1 + d
				}
			}
		}
		depth++
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}

// lookupField finds a field walking the superclass chain.
func (c *Class) lookupField(name string) (*FieldDef, bool) {
	for cur := c; cur != nil; cur = cur.Super {
		if f, ok := cur.fields[name]; ok {
			return f, true
		}
	}
	return nil, false
}

func sameSignature(a, b *Method) bool {
	if len(a.Params) != len(b.Params) {
		return false
	}
	for i := range a.Params {
		if a.Params[i] != b.Params[i] {
			return false
		}
	}
	return true
}
