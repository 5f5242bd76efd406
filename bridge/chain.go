package bridge

import (
	"github.com/objlink/objlink/errors"
)

// Chain threads a sequence of member accesses through intermediate
// results without the caller managing each handle. Every step releases
// the handle it supersedes; the first failure poisons the chain and
// subsequent steps are no-ops.
type Chain struct {
	rt   *Runtime
	cur  *Instance
	err  error
	done bool
}

// ChainOn starts a chain from an existing handle. The chain clones the
// handle, so the original stays owned by the caller.
func (r *Runtime) ChainOn(inst *Instance) *Chain {
	cur, err := r.CloneInstance(inst)
	return &Chain{rt: r, cur: cur, err: err}
}

// ChainCreate starts a chain by constructing an instance.
func (r *Runtime) ChainCreate(class string, args ...InvocationArg) *Chain {
	cur, err := r.CreateInstance(class, args...)
	return &Chain{rt: r, cur: cur, err: err}
}

func (c *Chain) step(next *Instance, err error) *Chain {
	if c.err != nil {
		return c
	}
	if err != nil {
		c.fail(err)
		return c
	}
	_ = c.cur.Close()
	c.cur = next
	return c
}

func (c *Chain) fail(err error) {
	c.err = err
	if c.cur != nil {
		_ = c.cur.Close()
		c.cur = nil
	}
}

// Invoke calls a method on the chain's current object and makes the
// result the new current object.
func (c *Chain) Invoke(method string, args ...InvocationArg) *Chain {
	if c.err != nil {
		return c
	}
	next, err := c.rt.Invoke(c.cur, method, args...)
	return c.step(next, err)
}

// Field reads a field of the current object and advances to it.
func (c *Chain) Field(name string) *Chain {
	if c.err != nil {
		return c
	}
	next, err := c.rt.Field(c.cur, name)
	return c.step(next, err)
}

// Cast reinterprets the current object as the named class.
func (c *Chain) Cast(class string) *Chain {
	if c.err != nil {
		return c
	}
	next, err := c.rt.Cast(c.cur, class)
	return c.step(next, err)
}

// Collect ends the chain and hands ownership of the final handle to the
// caller. A poisoned chain returns its first error.
func (c *Chain) Collect() (*Instance, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.done {
		return nil, errors.RefReleased("chain already collected")
	}
	c.done = true
	inst := c.cur
	c.cur = nil
	return inst, nil
}

// ToGo ends the chain by materializing the final object into out and
// releasing it.
func (c *Chain) ToGo(out any) error {
	inst, err := c.Collect()
	if err != nil {
		return err
	}
	defer inst.Close()
	return c.rt.ToGo(inst, out)
}
