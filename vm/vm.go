package vm

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/objlink/objlink/errors"
)

// Options configures a VM at creation. Classpath and StartupOptions are
// fixed for the VM's lifetime; they are recorded and visible to managed
// code but not reinterpreted after startup.
type Options struct {
	Classpath      []string
	StartupOptions []string
	Logger         *zap.Logger
}

// CallbackSink is the bridge entry point the runtime invokes to deliver an
// asynchronous result. It runs on a runtime-owned thread and receives the
// registration token plus a freshly minted reference to the delivered
// object; ownership of the reference transfers to the sink.
type CallbackSink func(token int64, ref Ref)

type callbackEvent struct {
	val   Value
	token int64
}

// VM is one managed object runtime: a class registry, the reference table
// backing the host's handles, per-thread attachment bookkeeping, and a
// dispatcher thread that delivers callbacks to the registered sink.
//
// A VM cannot be restarted after Shutdown.
type VM struct {
	opts Options
	log  *zap.Logger
	root *Class

	classMu sync.RWMutex
	classes map[string]*Class

	refs refTable

	threadMu sync.Mutex
	threads  map[int64]*Env

	sink    CallbackSink
	cbQueue chan callbackEvent
	done    chan struct{}
	cbStop  sync.Once
	closed  atomic.Bool
}

// New creates a VM and registers its bootstrap classes.
func New(opts Options) *VM {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	vm := &VM{
		opts:    opts,
		log:     log,
		classes: make(map[string]*Class),
		threads: make(map[int64]*Env),
		cbQueue: make(chan callbackEvent, 1024),
		done:    make(chan struct{}),
	}
	vm.registerBootstrap()
	vm.log.Debug("runtime created",
		zap.Strings("classpath", opts.Classpath),
		zap.Strings("options", opts.StartupOptions))
	return vm
}

// Register adds a class to the registry. Classes without an explicit
// superclass extend the root class.
func (vm *VM) Register(c *Class) error {
	vm.classMu.Lock()
	defer vm.classMu.Unlock()

	if _, exists := vm.classes[c.Name]; exists {
		return fmt.Errorf("class %q already registered", c.Name)
	}
	if c.Super == nil && c != vm.root {
		c.Super = vm.root
	}
	vm.classes[c.Name] = c
	return nil
}

// Lookup resolves a class by name.
func (vm *VM) Lookup(name string) (*Class, error) {
	if c, ok := vm.class(name); ok {
		return c, nil
	}
	return nil, errors.ClassNotFound(name)
}

func (vm *VM) class(name string) (*Class, bool) {
	vm.classMu.RLock()
	c, ok := vm.classes[name]
	vm.classMu.RUnlock()
	if ok {
		return c, true
	}
	// Array classes are synthesized on first use.
	if n := len(name); n > 2 && name[n-2:] == "[]" {
		return vm.arrayClass(name[:n-2])
	}
	return nil, false
}

// arrayClass returns the synthetic class for arrays of the named element
// class, creating it on first use.
func (vm *VM) arrayClass(elem string) (*Class, bool) {
	if _, ok := vm.class(elem); !ok {
		return nil, false
	}
	name := elem + "[]"

	vm.classMu.Lock()
	defer vm.classMu.Unlock()
	if c, ok := vm.classes[name]; ok {
		return c, true
	}
	c := NewClass(name)
	c.Elem = elem
	c.Super = vm.root
	c.Method(&Method{
		Name:   "length",
		Params: nil,
		Fn: func(call *Call) (Value, error) {
			elems := call.Recv.Data.(*[]Value)
			return I32(int32(len(*elems))), nil
		},
	})
	vm.classes[name] = c
	return c, true
}

// SetCallbackSink registers the bridge entry point and starts the delivery
// dispatcher. The dispatcher is a single runtime-owned thread, so deliveries
// are handed to the sink in the order managed code emitted them.
func (vm *VM) SetCallbackSink(sink CallbackSink) {
	vm.sink = sink
	go vm.dispatch()
}

func (vm *VM) dispatch() {
	for {
		var ev callbackEvent
		select {
		case <-vm.done:
			return
		case ev = <-vm.cbQueue:
		}
		obj, err := vm.materialize(ev.val)
		if err != nil {
			vm.log.Error("callback delivery dropped: cannot materialize value",
				zap.Int64("token", ev.token), zap.Error(err))
			continue
		}
		declared := vm.root
		if obj != nil {
			declared = obj.class
		}
		ref := vm.refs.newRef(obj, declared)
		vm.sink(ev.token, ref)
	}
}

// materialize turns an emitted value into an object, boxing scalars.
func (vm *VM) materialize(v Value) (*Object, error) {
	if v.Kind == KindObject {
		return v.Obj, nil
	}
	if v.Kind.IsScalar() {
		return vm.Box(v)
	}
	return nil, fmt.Errorf("cannot deliver %s value", v.Kind)
}

// Shutdown stops callback delivery and invalidates all attachments. Live
// references become unusable. The VM cannot be restarted.
func (vm *VM) Shutdown() {
	if vm.closed.Swap(true) {
		return
	}
	// The queue itself is never closed: emitters may still be blocked on a
	// send, and closing under them would panic the runtime worker. The done
	// channel releases both the dispatcher and any blocked emitters.
	vm.cbStop.Do(func() { close(vm.done) })

	vm.threadMu.Lock()
	for id, env := range vm.threads {
		env.detached.Store(true)
		delete(vm.threads, id)
	}
	vm.threadMu.Unlock()
	vm.log.Debug("runtime shut down")
}

// LiveRefs returns the number of live host-held references, for leak checks.
func (vm *VM) LiveRefs() int { return vm.refs.live() }

// Attach registers a thread with the runtime and returns its environment.
// Exactly one attachment may exist per thread; attaching an attached thread
// is an error (the caller is expected to cache).
func (vm *VM) Attach(threadID int64) (*Env, error) {
	if vm.closed.Load() {
		return nil, fmt.Errorf("runtime is shut down")
	}

	vm.threadMu.Lock()
	defer vm.threadMu.Unlock()

	if _, exists := vm.threads[threadID]; exists {
		return nil, fmt.Errorf("thread %d is already attached", threadID)
	}
	env := &Env{vm: vm, threadID: threadID}
	vm.threads[threadID] = env
	vm.log.Debug("thread attached", zap.Int64("thread", threadID))
	return env, nil
}

// EnvFor returns the live attachment for a thread, if any.
func (vm *VM) EnvFor(threadID int64) (*Env, bool) {
	vm.threadMu.Lock()
	defer vm.threadMu.Unlock()
	env, ok := vm.threads[threadID]
	return env, ok
}

// Detach tears down a thread's attachment. Further use of its Env errors.
func (vm *VM) Detach(threadID int64) error {
	vm.threadMu.Lock()
	defer vm.threadMu.Unlock()

	env, exists := vm.threads[threadID]
	if !exists {
		return fmt.Errorf("thread %d is not attached", threadID)
	}
	env.detached.Store(true)
	delete(vm.threads, threadID)
	vm.log.Debug("thread detached", zap.Int64("thread", threadID))
	return nil
}

// Env is one thread's live attachment to the runtime. All boundary-crossing
// operations are methods on Env, so an unattached call is unrepresentable.
// An Env must not be shared across threads.
type Env struct {
	vm       *VM
	threadID int64
	detached atomic.Bool
}

// ThreadID returns the attached thread's identifier.
func (e *Env) ThreadID() int64 { return e.threadID }

// VM returns the runtime this environment is attached to.
func (e *Env) VM() *VM { return e.vm }

// Valid reports whether the attachment is still usable: the thread has not
// been detached and the runtime is not shut down.
func (e *Env) Valid() bool {
	return !e.detached.Load() && !e.vm.closed.Load()
}

func (e *Env) check() error {
	if e.detached.Load() || e.vm.closed.Load() {
		return errors.RuntimeUnavailable("thread attachment is no longer valid")
	}
	return nil
}

// run executes a method body, converting exceptions and panics into
// structured invocation failures. Managed exceptions never unwind into the
// host as faults.
func (e *Env) run(class *Class, m *Method, recv *Object, args []Value) (val Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			t := Throwf("%v", r)
			err = errors.InvocationFailed(class.Name, m.Name, t.Message, t.Stack)
		}
	}()

	if m.Abstract {
		return Value{}, errors.InvocationFailed(class.Name, m.Name,
			"abstract member has no implementation", "")
	}

	val, err = m.Fn(&Call{Env: e, Recv: recv, Args: args})
	if err != nil {
		if t, ok := err.(*Throwable); ok {
			return Value{}, errors.InvocationFailed(class.Name, m.Name, t.Message, t.Stack)
		}
		if be, ok := err.(*errors.Error); ok {
			return Value{}, be
		}
		return Value{}, errors.InvocationFailed(class.Name, m.Name, err.Error(), "")
	}
	return val, nil
}

// refValue mints a reference for a method result. Scalar results are boxed
// so every invocation yields an object handle; void results yield a null
// handle.
func (e *Env) refValue(v Value) (Ref, error) {
	switch {
	case v.Kind == KindVoid:
		return e.vm.refs.newRef(nil, e.vm.root), nil
	case v.Kind.IsScalar():
		obj, err := e.vm.Box(v)
		if err != nil {
			return 0, errors.Wrap(errors.KindConversionError, err, "box result")
		}
		return e.vm.refs.newRef(obj, obj.class), nil
	case v.Obj == nil:
		return e.vm.refs.newRef(nil, e.vm.root), nil
	default:
		return e.vm.refs.newRef(v.Obj, v.Obj.class), nil
	}
}

// NewInstance resolves a constructor overload of the named class against
// the marshaled argument types and instantiates it.
func (e *Env) NewInstance(class string, descs []TypeDesc, args []Value) (Ref, error) {
	if err := e.check(); err != nil {
		return 0, err
	}
	c, err := e.vm.Lookup(class)
	if err != nil {
		return 0, err
	}
	ctor, err := e.vm.resolveCtor(c, descs)
	if err != nil {
		return 0, err
	}
	val, err := e.run(c, ctor, nil, args)
	if err != nil {
		return 0, err
	}
	if val.Kind != KindObject || val.Obj == nil {
		return 0, errors.InvocationFailed(class, "<init>", "constructor returned no instance", "")
	}
	return e.vm.refs.newRef(val.Obj, c), nil
}

// Invoke resolves a method overload against the reference's declared class
// and invokes the receiver's implementation. A static-class handle resolves
// static members instead.
func (e *Env) Invoke(ref Ref, name string, descs []TypeDesc, args []Value) (Ref, error) {
	if err := e.check(); err != nil {
		return 0, err
	}
	obj, declared, err := e.vm.refs.get(ref)
	if err != nil {
		return 0, err
	}
	if obj == nil {
		return 0, errors.InvocationFailed(declared.Name, name, "null receiver", "")
	}

	static := obj.IsStatic()
	m, err := e.vm.resolveMethod(declared, name, descs, static)
	if err != nil {
		return 0, err
	}

	impl := m
	recv := obj
	if static {
		recv = nil
	} else {
		impl = selectImpl(obj.class, m)
	}

	val, err := e.run(declared, impl, recv, args)
	if err != nil {
		return 0, err
	}
	return e.refValue(val)
}

// InvokeStatic resolves and invokes a static method with no receiver.
func (e *Env) InvokeStatic(class, name string, descs []TypeDesc, args []Value) (Ref, error) {
	if err := e.check(); err != nil {
		return 0, err
	}
	c, err := e.vm.Lookup(class)
	if err != nil {
		return 0, err
	}
	m, err := e.vm.resolveMethod(c, name, descs, true)
	if err != nil {
		return 0, err
	}
	val, err := e.run(c, m, nil, args)
	if err != nil {
		return 0, err
	}
	return e.refValue(val)
}

// StaticClass returns a handle standing for the named class itself, through
// which static members resolve.
func (e *Env) StaticClass(class string) (Ref, error) {
	if err := e.check(); err != nil {
		return 0, err
	}
	c, err := e.vm.Lookup(class)
	if err != nil {
		return 0, err
	}
	return e.vm.refs.newRef(NewObject(c, staticRecv{}), c), nil
}

// GetField reads an instance or static field's current value.
func (e *Env) GetField(ref Ref, name string) (Ref, error) {
	if err := e.check(); err != nil {
		return 0, err
	}
	obj, declared, err := e.vm.refs.get(ref)
	if err != nil {
		return 0, err
	}
	if obj == nil {
		return 0, errors.InvocationFailed(declared.Name, name, "null receiver", "")
	}

	f, ok := declared.lookupField(name)
	if !ok {
		return 0, errors.MethodNotFound(declared.Name, name, nil)
	}
	if obj.IsStatic() && !f.Static {
		return 0, errors.MethodNotFound(declared.Name, name, nil)
	}

	recv := obj
	if f.Static {
		recv = nil
	}
	val, err := f.Get(&Call{Env: e, Recv: recv})
	if err != nil {
		if t, ok := err.(*Throwable); ok {
			return 0, errors.InvocationFailed(declared.Name, name, t.Message, t.Stack)
		}
		return 0, err
	}
	return e.refValue(val)
}

// Cast reinterprets the reference as the named class, which must be
// assignable from the object's runtime class. The returned reference is
// independently owned and scopes subsequent member resolution to the
// target class.
func (e *Env) Cast(ref Ref, class string) (Ref, error) {
	if err := e.check(); err != nil {
		return 0, err
	}
	obj, declared, err := e.vm.refs.get(ref)
	if err != nil {
		return 0, err
	}
	target, err := e.vm.Lookup(class)
	if err != nil {
		return 0, err
	}
	if obj == nil {
		return e.vm.refs.newRef(nil, target), nil
	}
	if !obj.class.AssignableTo(target) {
		from := declared.Name
		if obj.class != nil {
			from = obj.class.Name
		}
		return 0, errors.IllegalCast(from, class)
	}
	return e.vm.refs.newRef(obj, target), nil
}

// CloneRef asks the runtime to mint a second independent reference to the
// same object. The two references are released independently.
func (e *Env) CloneRef(ref Ref) (Ref, error) {
	if err := e.check(); err != nil {
		return 0, err
	}
	return e.vm.refs.clone(ref)
}

// DeleteRef releases a reference exactly once. A second release of the same
// reference is a defined error.
func (e *Env) DeleteRef(ref Ref) error {
	if err := e.check(); err != nil {
		return err
	}
	return e.vm.refs.delete(ref)
}

// ClassName returns the declared class name of a reference.
func (e *Env) ClassName(ref Ref) (string, error) {
	if err := e.check(); err != nil {
		return "", err
	}
	_, declared, err := e.vm.refs.get(ref)
	if err != nil {
		return "", err
	}
	return declared.Name, nil
}

// Deref exposes the referenced object and its declared class for value
// conversion. The object remains owned by the runtime.
func (e *Env) Deref(ref Ref) (*Object, *Class, error) {
	if err := e.check(); err != nil {
		return nil, nil, err
	}
	return e.vm.refs.get(ref)
}

// NewRef mints a reference for an object produced by managed code.
func (e *Env) NewRef(obj *Object) (Ref, error) {
	if err := e.check(); err != nil {
		return 0, err
	}
	declared := e.vm.root
	if obj != nil {
		declared = obj.class
	}
	return e.vm.refs.newRef(obj, declared), nil
}

// EmitCallback queues an asynchronous delivery of v to the callback
// registration identified by token. The delivery happens on a runtime-owned
// thread through the registered sink, in emission order.
func (e *Env) EmitCallback(token int64, v Value) error {
	if e.vm.sink == nil {
		return fmt.Errorf("no callback sink registered")
	}
	select {
	case <-e.vm.done:
		return fmt.Errorf("runtime is shut down")
	case e.vm.cbQueue <- callbackEvent{token: token, val: v}:
		return nil
	}
}
