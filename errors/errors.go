package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Kind categorizes a bridge error.
type Kind string

const (
	KindRuntimeUnavailable   Kind = "runtime_unavailable"
	KindAttachFailed         Kind = "attach_failed"
	KindClassNotFound        Kind = "class_not_found"
	KindConversionError      Kind = "conversion_error"
	KindNumericOverflow      Kind = "numeric_overflow"
	KindInvalidCast          Kind = "invalid_cast"
	KindIllegalCast          Kind = "illegal_cast"
	KindMethodNotFound       Kind = "method_not_found"
	KindInvocationFailed     Kind = "invocation_failed"
	KindNullResult           Kind = "null_result"
	KindChannelClosed        Kind = "channel_closed"
	KindRecvTimeout          Kind = "recv_timeout"
	KindRefReleased          Kind = "ref_released"
	KindArtifactDeployFailed Kind = "artifact_deploy_failed"
)

// Error is the structured error type used throughout the bridge.
type Error struct {
	Value      any
	Cause      error
	Kind       Kind
	Class      string
	Member     string
	ArgTypes   []string
	Detail     string
	StackTrace string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Kind))
	b.WriteByte(']')

	if e.Class != "" {
		b.WriteByte(' ')
		b.WriteString(e.Class)
		if e.Member != "" {
			b.WriteByte('.')
			b.WriteString(e.Member)
		}
	} else if e.Member != "" {
		b.WriteByte(' ')
		b.WriteString(e.Member)
	}

	if len(e.ArgTypes) > 0 {
		b.WriteByte('(')
		b.WriteString(strings.Join(e.ArgTypes, ", "))
		b.WriteByte(')')
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// IsKind reports whether err or any error in its chain is a bridge error of
// the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// As and Is re-export the standard helpers so callers need only one
// errors import.
func As(err error, target any) bool { return stderrors.As(err, target) }

func Is(err, target error) bool { return stderrors.Is(err, target) }

// Builder provides structured error construction.
type Builder struct {
	err Error
}

// New creates a new error builder.
func New(kind Kind) *Builder {
	return &Builder{err: Error{Kind: kind}}
}

// Class sets the managed class name.
func (b *Builder) Class(name string) *Builder {
	b.err.Class = name
	return b
}

// Member sets the method or field name.
func (b *Builder) Member(name string) *Builder {
	b.err.Member = name
	return b
}

// ArgTypes sets the marshaled argument type descriptors.
func (b *Builder) ArgTypes(types ...string) *Builder {
	b.err.ArgTypes = types
	return b
}

// Value sets the offending value.
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error.
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// StackTrace sets the managed runtime's stack trace text.
func (b *Builder) StackTrace(trace string) *Builder {
	b.err.StackTrace = trace
	return b
}

// Detail sets the human-readable detail message.
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error.
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// RuntimeUnavailable reports that no runtime has been initialized, or that
// the handle in use has been shut down.
func RuntimeUnavailable(detail string) *Error {
	return &Error{Kind: KindRuntimeUnavailable, Detail: detail}
}

// AttachFailed reports a failed thread attach handshake.
func AttachFailed(threadID int64, cause error) *Error {
	return &Error{
		Kind:   KindAttachFailed,
		Detail: fmt.Sprintf("attach thread %d", threadID),
		Cause:  cause,
	}
}

// ClassNotFound reports an unresolvable class name.
func ClassNotFound(name string) *Error {
	return &Error{
		Kind:   KindClassNotFound,
		Class:  name,
		Detail: "class not found",
	}
}

// Conversion reports a host value whose shape does not match its declared
// managed class.
func Conversion(class string, value any, detail string) *Error {
	return &Error{
		Kind:   KindConversionError,
		Class:  class,
		Value:  value,
		Detail: detail,
	}
}

// NumericOverflow reports a narrowing conversion that would lose data.
func NumericOverflow(value any, targetType string) *Error {
	return &Error{
		Kind:   KindNumericOverflow,
		Value:  value,
		Detail: fmt.Sprintf("value %v does not fit %s", value, targetType),
	}
}

// InvalidCast reports a return value whose runtime class does not match the
// requested host type.
func InvalidCast(class, hostType string) *Error {
	return &Error{
		Kind:   KindInvalidCast,
		Class:  class,
		Detail: fmt.Sprintf("cannot convert to %s", hostType),
	}
}

// IllegalCast reports a rejected cast between managed classes.
func IllegalCast(from, to string) *Error {
	return &Error{
		Kind:   KindIllegalCast,
		Class:  from,
		Detail: fmt.Sprintf("not assignable to %s", to),
	}
}

// MethodNotFound reports that overload resolution found no applicable member.
func MethodNotFound(class, name string, argTypes []string) *Error {
	return &Error{
		Kind:     KindMethodNotFound,
		Class:    class,
		Member:   name,
		ArgTypes: argTypes,
		Detail:   "no applicable member",
	}
}

// InvocationFailed wraps an exception raised inside the managed runtime.
func InvocationFailed(class, member, message, stackTrace string) *Error {
	return &Error{
		Kind:       KindInvocationFailed,
		Class:      class,
		Member:     member,
		Detail:     message,
		StackTrace: stackTrace,
	}
}

// NullResult reports a null managed reference converted to a host type that
// cannot represent absence.
func NullResult(hostType string) *Error {
	return &Error{
		Kind:   KindNullResult,
		Detail: fmt.Sprintf("null result cannot be represented as %s", hostType),
	}
}

// ChannelClosed reports a callback delivery to an abandoned receiver.
func ChannelClosed(token int64) *Error {
	return &Error{
		Kind:   KindChannelClosed,
		Value:  token,
		Detail: fmt.Sprintf("receiver for callback registration %d is gone", token),
	}
}

// RecvTimeout reports a timed channel receive that expired.
func RecvTimeout(detail string) *Error {
	return &Error{Kind: KindRecvTimeout, Detail: detail}
}

// RefReleased reports use or release of an already released object handle.
func RefReleased(detail string) *Error {
	return &Error{Kind: KindRefReleased, Detail: detail}
}

// DeployFailed reports a failed artifact deployment.
func DeployFailed(artifact string, cause error) *Error {
	return &Error{
		Kind:   KindArtifactDeployFailed,
		Detail: fmt.Sprintf("deploy %s", artifact),
		Cause:  cause,
	}
}

// Wrap wraps an existing error with a kind and detail.
func Wrap(kind Kind, cause error, detail string) *Error {
	return &Error{Kind: kind, Detail: detail, Cause: cause}
}
