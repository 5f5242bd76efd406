package vm

import (
	"github.com/objlink/objlink/errors"
)

// Overload resolution: given a declared class, a member name and the
// marshaled argument descriptors, pick the member whose formal parameter
// types are assignable from the arguments, preferring the most specific
// applicable overload. Specificity is measured as the total inheritance
// distance between argument and parameter types; remaining ties resolve to
// the earliest declaration found walking the hierarchy. Resolution happens
// against the handle's declared class, so a cast narrows or widens the
// member scope; the invoked implementation is then selected from the
// receiver's runtime class.

const nullDistance = 1 << 16

// assignDistance reports whether an argument of type arg is usable where
// param is expected, and at what specificity cost. Primitive kinds match
// exactly; there is no implicit boxing or widening, since the distinction
// is significant for resolution.
func (vm *VM) assignDistance(arg, param TypeDesc) (int, bool) {
	switch {
	case param.Kind.IsScalar():
		if arg.Kind == param.Kind {
			return 0, true
		}
		return 0, false

	case param.Kind == KindObject:
		paramClass, ok := vm.class(param.Class)
		if !ok {
			return 0, false
		}
		switch arg.Kind {
		case KindObject:
			if arg.Class == "" {
				// Null is applicable to every reference type, least specific.
				return nullDistance, true
			}
			argClass, ok := vm.class(arg.Class)
			if !ok {
				return 0, false
			}
			return argClass.distanceTo(paramClass)
		case KindArray:
			// Arrays are objects; assignable to the root class only.
			if paramClass == vm.root {
				return 1, true
			}
			return 0, false
		}
		return 0, false

	case param.Kind == KindArray:
		switch arg.Kind {
		case KindArray:
			if arg.Class == param.Class {
				return 0, true
			}
			return 0, false
		case KindObject:
			if arg.Class == "" {
				return nullDistance, true
			}
		}
		return 0, false
	}
	return 0, false
}

func (vm *VM) applicable(params []TypeDesc, args []TypeDesc) (int, bool) {
	if len(params) != len(args) {
		return 0, false
	}
	total := 0
	for i := range params {
		d, ok := vm.assignDistance(args[i], params[i])
		if !ok {
			return 0, false
		}
		total += d
	}
	return total, true
}

type candidate struct {
	method *Method
	dist   int
	order  int
}

// resolveMethod picks the applicable overload of name in the declared
// class's hierarchy (superclasses first, then interface closures, in
// declaration order).
func (vm *VM) resolveMethod(declared *Class, name string, args []TypeDesc, static bool) (*Method, error) {
	var best *candidate
	order := 0

	consider := func(c *Class) {
		for _, m := range c.methods[name] {
			order++
			if m.Static != static {
				continue
			}
			dist, ok := vm.applicable(m.Params, args)
			if !ok {
				continue
			}
			if best == nil || dist < best.dist {
				best = &candidate{method: m, dist: dist, order: order}
			}
		}
	}

	var walkIfaces func(c *Class)
	walkIfaces = func(c *Class) {
		for _, iface := range c.Interfaces {
			consider(iface)
			walkIfaces(iface)
		}
	}

	for cur := declared; cur != nil; cur = cur.Super {
		consider(cur)
	}
	for cur := declared; cur != nil; cur = cur.Super {
		walkIfaces(cur)
	}

	if best == nil {
		return nil, errors.MethodNotFound(declared.Name, name, descStrings(args))
	}
	return best.method, nil
}

// selectImpl picks the implementation to run for a resolved signature: the
// receiver's runtime class may override the declared member.
func selectImpl(runtime *Class, resolved *Method) *Method {
	if runtime == nil {
		return resolved
	}
	for cur := runtime; cur != nil; cur = cur.Super {
		for _, m := range cur.methods[resolved.Name] {
			if m.Static == resolved.Static && !m.Abstract && sameSignature(m, resolved) {
				return m
			}
		}
	}
	return resolved
}

// resolveCtor picks the applicable constructor overload of c.
func (vm *VM) resolveCtor(c *Class, args []TypeDesc) (*Method, error) {
	var best *candidate
	for i, m := range c.ctors {
		dist, ok := vm.applicable(m.Params, args)
		if !ok {
			continue
		}
		if best == nil || dist < best.dist {
			best = &candidate{method: m, dist: dist, order: i}
		}
	}
	if best == nil {
		return nil, errors.MethodNotFound(c.Name, "<init>", descStrings(args))
	}
	return best.method, nil
}

func descStrings(descs []TypeDesc) []string {
	out := make([]string, len(descs))
	for i, d := range descs {
		out[i] = d.String()
	}
	return out
}
