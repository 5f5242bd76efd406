// Package bridge is the host-side surface for working with objects in the
// embedded managed runtime.
//
// The package connects four concerns:
//
//	Runtime           - a handle to the process-wide runtime, built once
//	Instance          - an owned reference to one managed object
//	InvocationArg     - host values marshaled for overload resolution
//	InstanceReceiver  - the host end of a callback channel
//
// # Lifecycle
//
//  1. NewBuilder().Build() starts (or joins) the process-wide runtime
//  2. Goroutines attach implicitly on first use, or explicitly via
//     AttachCurrentThread / AttachCurrentThreadAsDaemon
//  3. CreateInstance / InvokeStatic mint owned handles; Invoke, Cast,
//     Field, and CloneInstance derive further handles from them
//  4. Every handle is released exactly once with Close; releasing twice
//     or using a released handle fails with a defined error
//  5. Runtime.Shutdown detaches the handle's non-daemon attachments; the
//     underlying runtime keeps serving other handles
//
// # Argument marshaling
//
// Scalar constructors (IntArg, DoubleArg, ...) produce boxed arguments by
// default. IntoPrimitive converts one to its primitive form, which
// resolves against primitive-typed parameters instead of wrapper-typed
// ones. InstanceArg passes an existing handle; ArrayArg builds a managed
// array, which is also how variadic members are called.
//
// # Callbacks
//
// InitCallbackChannel hands an object a process-unique token through its
// initializeCallbackChannel method. Emissions against that token surface
// on the returned InstanceReceiver in emission order. Tokens are never
// reclaimed for the life of the process.
package bridge
