// Package vm implements the managed object runtime the bridge binds to:
// a class registry with single inheritance and interfaces, overloaded
// constructors and methods resolved by marshaled argument types, a
// reference table backing every handle the host holds, per-thread
// attachment bookkeeping, and a dispatcher thread that delivers
// asynchronous callbacks to the bridge's registered sink.
//
// The runtime exposes the same narrow surface a native call interface
// would: threads attach before calling in, every boundary-crossing value is
// either an unboxed primitive scalar or a reference token, and references
// are valid until released exactly once. Member resolution is scoped to a
// reference's declared class, so casting a reference genuinely changes
// which overloads are visible, while invocation dispatches to the
// receiver's runtime class.
//
// Exceptions raised by method bodies (returned *Throwable values or
// panics) are captured with a stack snapshot and surfaced as structured
// invocation failures; they never unwind into the caller.
package vm
