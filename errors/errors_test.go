package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormat(t *testing.T) {
	err := MethodNotFound("lang.String", "explode", []string{"int", "lang.String"})
	msg := err.Error()

	if !strings.Contains(msg, "[method_not_found]") {
		t.Fatalf("missing kind tag: %s", msg)
	}
	if !strings.Contains(msg, "lang.String.explode") {
		t.Fatalf("missing member path: %s", msg)
	}
	if !strings.Contains(msg, "(int, lang.String)") {
		t.Fatalf("missing arg types: %s", msg)
	}
}

func TestErrorCauseChain(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := DeployFailed("org.example:thing:1.0", cause)

	if !strings.Contains(err.Error(), "caused by: connection refused") {
		t.Fatalf("cause not rendered: %s", err.Error())
	}
	if !stderrors.Is(err, cause) {
		t.Fatal("expected errors.Is to match the cause")
	}
}

func TestIsMatchesByKind(t *testing.T) {
	err := ClassNotFound("does.not.Exist")

	if !stderrors.Is(err, &Error{Kind: KindClassNotFound}) {
		t.Fatal("expected Is to match on kind")
	}
	if stderrors.Is(err, &Error{Kind: KindIllegalCast}) {
		t.Fatal("Is matched a different kind")
	}
}

func TestIsKindWalksChain(t *testing.T) {
	inner := NumericOverflow(int64(1)<<40, "int32")
	outer := fmt.Errorf("convert result: %w", inner)

	if !IsKind(outer, KindNumericOverflow) {
		t.Fatal("IsKind did not walk the wrap chain")
	}
	if IsKind(outer, KindNullResult) {
		t.Fatal("IsKind matched the wrong kind")
	}
	if IsKind(nil, KindNullResult) {
		t.Fatal("IsKind matched nil")
	}
}

func TestBuilder(t *testing.T) {
	err := New(KindInvocationFailed).
		Class("demo.Widget").
		Member("explode").
		Detail("boom %d", 7).
		StackTrace("at demo.Widget.explode").
		Build()

	if err.Kind != KindInvocationFailed {
		t.Fatalf("kind = %s", err.Kind)
	}
	if err.Detail != "boom 7" {
		t.Fatalf("detail = %q", err.Detail)
	}
	if err.StackTrace == "" {
		t.Fatal("stack trace dropped")
	}
	if !strings.Contains(err.Error(), "demo.Widget.explode") {
		t.Fatalf("member path missing: %s", err.Error())
	}
}
