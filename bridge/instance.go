package bridge

import (
	"sync/atomic"

	"github.com/objlink/objlink/errors"
	"github.com/objlink/objlink/vm"
)

// Instance is an owned handle to one managed-runtime object: created by
// construction, static-class lookup, or as a call's result, and destroyed
// by releasing the underlying managed reference exactly once via Close.
//
// A handle has a single owner. Passing one to another owner requires
// Clone, which asks the runtime to mint a genuinely independent reference;
// copying the struct does not duplicate the reference and invites a double
// release. Concurrent invocations through one handle are the caller's
// responsibility to synchronize.
type Instance struct {
	rt        *Runtime
	ref       vm.Ref
	className string
	released  atomic.Bool
}

// ClassName returns the handle's declared managed class.
func (i *Instance) ClassName() string { return i.className }

func (i *Instance) guard() error {
	if i.released.Load() {
		return errors.RefReleased("instance of " + i.className + " already released")
	}
	return nil
}

// Close releases the underlying managed reference. Exactly one release is
// valid; a second Close fails with a defined error and leaves the runtime's
// bookkeeping untouched.
func (i *Instance) Close() error {
	if i.released.Swap(true) {
		return errors.RefReleased("instance of " + i.className + " already released")
	}
	env, err := i.rt.attach(true)
	if err != nil {
		return err
	}
	return env.DeleteRef(i.ref)
}

// wrap mints the host-side handle for a freshly owned reference.
func (r *Runtime) wrap(env *vm.Env, ref vm.Ref) (*Instance, error) {
	name, err := env.ClassName(ref)
	if err != nil {
		return nil, err
	}
	return &Instance{rt: r, ref: ref, className: name}, nil
}

// CreateInstance resolves a constructor overload of the named class against
// the marshaled arguments and instantiates it. The returned handle is owned
// by the caller.
func (r *Runtime) CreateInstance(class string, args ...InvocationArg) (*Instance, error) {
	env, err := r.attach(true)
	if err != nil {
		return nil, err
	}
	descs, vals, err := marshalArgs(env, args)
	if err != nil {
		return nil, err
	}
	ref, err := env.NewInstance(class, descs, vals)
	if err != nil {
		return nil, err
	}
	return r.wrap(env, ref)
}

// Invoke calls an instance method, resolving the overload by the marshaled
// argument types against the handle's declared class.
func (r *Runtime) Invoke(inst *Instance, method string, args ...InvocationArg) (*Instance, error) {
	if err := inst.guard(); err != nil {
		return nil, err
	}
	env, err := r.attach(true)
	if err != nil {
		return nil, err
	}
	descs, vals, err := marshalArgs(env, args)
	if err != nil {
		return nil, err
	}
	ref, err := env.Invoke(inst.ref, method, descs, vals)
	if err != nil {
		return nil, err
	}
	return r.wrap(env, ref)
}

// InvokeStatic calls a static method of the named class.
func (r *Runtime) InvokeStatic(class, method string, args ...InvocationArg) (*Instance, error) {
	env, err := r.attach(true)
	if err != nil {
		return nil, err
	}
	descs, vals, err := marshalArgs(env, args)
	if err != nil {
		return nil, err
	}
	ref, err := env.InvokeStatic(class, method, descs, vals)
	if err != nil {
		return nil, err
	}
	return r.wrap(env, ref)
}

// StaticClass returns a handle standing for the named class itself, for
// chained access to static members.
func (r *Runtime) StaticClass(class string) (*Instance, error) {
	env, err := r.attach(true)
	if err != nil {
		return nil, err
	}
	ref, err := env.StaticClass(class)
	if err != nil {
		return nil, err
	}
	return r.wrap(env, ref)
}

// Cast reinterprets the handle's reference as the named class, which must
// be assignable from the object's runtime class. Subsequent member
// resolution through the returned handle happens against the new declared
// class. The original handle stays valid and independently owned.
func (r *Runtime) Cast(inst *Instance, class string) (*Instance, error) {
	if err := inst.guard(); err != nil {
		return nil, err
	}
	env, err := r.attach(true)
	if err != nil {
		return nil, err
	}
	ref, err := env.Cast(inst.ref, class)
	if err != nil {
		return nil, err
	}
	return r.wrap(env, ref)
}

// CloneInstance asks the runtime to mint a second independent reference to
// the same object. The two handles are released independently.
func (r *Runtime) CloneInstance(inst *Instance) (*Instance, error) {
	if err := inst.guard(); err != nil {
		return nil, err
	}
	env, err := r.attach(true)
	if err != nil {
		return nil, err
	}
	ref, err := env.CloneRef(inst.ref)
	if err != nil {
		return nil, err
	}
	return r.wrap(env, ref)
}

// Field reads an instance or static field's current value.
func (r *Runtime) Field(inst *Instance, name string) (*Instance, error) {
	if err := inst.guard(); err != nil {
		return nil, err
	}
	env, err := r.attach(true)
	if err != nil {
		return nil, err
	}
	ref, err := env.GetField(inst.ref, name)
	if err != nil {
		return nil, err
	}
	return r.wrap(env, ref)
}

// CreateArray allocates a managed array of the named element class,
// populated positionally from the marshaled arguments. Arrays are how
// variadic members are called.
func (r *Runtime) CreateArray(elemClass string, args ...InvocationArg) (*Instance, error) {
	env, err := r.attach(true)
	if err != nil {
		return nil, err
	}
	_, val, err := marshalArg(env, ArrayArg(elemClass, args...))
	if err != nil {
		return nil, err
	}
	ref, err := env.NewRef(val.Obj)
	if err != nil {
		return nil, err
	}
	return r.wrap(env, ref)
}

// Instance-level conveniences delegating to the owning runtime.

func (i *Instance) Invoke(method string, args ...InvocationArg) (*Instance, error) {
	return i.rt.Invoke(i, method, args...)
}

func (i *Instance) Cast(class string) (*Instance, error) {
	return i.rt.Cast(i, class)
}

func (i *Instance) Clone() (*Instance, error) {
	return i.rt.CloneInstance(i)
}

func (i *Instance) Field(name string) (*Instance, error) {
	return i.rt.Field(i, name)
}
