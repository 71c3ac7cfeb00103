package coordinator

import (
	"errors"
	"testing"
)

func TestKindOfExtractsWrappedKind(t *testing.T) {
	err := wrap(KindNoMedia, errors.New("no playable file"))
	kind, ok := KindOf(err)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if kind != KindNoMedia {
		t.Fatalf("kind = %s, want %s", kind, KindNoMedia)
	}
}

func TestKindOfFalseForPlainError(t *testing.T) {
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Fatal("expected ok=false for a plain error")
	}
}

func TestKindOfFalseForStringifiedError(t *testing.T) {
	inner := wrap(KindCodecError, errors.New("bad codec"))
	outer := errors.New("context: " + inner.Error())
	if _, ok := KindOf(outer); ok {
		t.Fatal("expected ok=false: outer is a plain error, not a wrapped *Error")
	}
}

func TestWrapNilReturnsNil(t *testing.T) {
	if err := wrap(KindIOError, nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
