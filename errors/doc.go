// Package errors provides the structured error types used by the bridge.
//
// Every boundary-crossing operation returns an *Error carrying a Kind from
// the bridge's error taxonomy plus enough context (class, member, marshaled
// argument types, managed stack trace) to log or re-raise the failure.
// Errors compare by Kind through errors.Is, so callers can match on the
// taxonomy without inspecting message text:
//
//	_, err := rt.Invoke(inst, "nope")
//	if errors.IsKind(err, errors.KindMethodNotFound) {
//	    // handle missing member
//	}
//
// No operation in the bridge panics on a managed-runtime failure; exceptions
// raised inside the runtime are always recovered and wrapped as
// KindInvocationFailed with the exception's message and stack trace text.
package errors
