// Package objlink links host Go code to objects living in an embedded
// managed object runtime.
//
// The runtime has its own class system with inheritance, interfaces, and
// overloaded members; the bridge lets hosts construct instances, invoke
// methods with overload-sensitive argument marshaling, hold reference-
// counted object handles, and receive objects emitted by runtime-side
// code over callback channels.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct
// responsibilities:
//
//	objlink/           Root package documentation
//	├── bridge/        Host-side API: runtime handles, thread gateway,
//	│                  argument marshaling, object handles, invocation
//	│                  chains, callback channels, host conversion
//	├── vm/            The embedded managed object runtime: class system,
//	│                  overload resolution, reference table, bootstrap
//	│                  classes, callback dispatch
//	├── provision/     Jar artifact deployment onto the classpath
//	│                  staging directory
//	├── errors/        Structured error types for debugging
//	└── testbed/       Demo classes and end-to-end integration tests
//
// # Quick Start
//
// Create a runtime handle, construct an object, and call it:
//
//	rt, err := bridge.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Shutdown()
//
//	inst, err := rt.CreateInstance("lang.String", bridge.StringArg("hi"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Close()
//
//	length, err := inst.Invoke("length")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer length.Close()
//
//	n, err := bridge.To[int32](rt, length)
//
// # Threads
//
// Each goroutine attaches to the runtime before calling into it. The
// bridge attaches lazily on first use; AttachCurrentThread and
// DetachCurrentThread manage attachments explicitly. Handles obtained on
// one goroutine may be used from another as long as that goroutine is,
// or becomes, attached.
//
// # Ownership
//
// Every Instance owns exactly one managed reference and releases it with
// Close, exactly once. Clone mints an independently owned reference to
// the same object. Using or closing a released handle fails with a
// defined error rather than corrupting the reference table.
package objlink
