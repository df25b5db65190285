package errs

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{name: "op and cause", err: &Error{Kind: Network, Op: "fetch manifest", Err: io.EOF}, want: "fetch manifest: EOF"},
		{name: "cause only", err: &Error{Kind: IO, Err: io.EOF}, want: "EOF"},
		{name: "op only", err: &Error{Kind: Config, Op: "load package.json"}, want: "load package.json"},
		{name: "empty", err: &Error{Kind: Dispatch}, want: "dispatch error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Fatalf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKindOfThroughWrapping(t *testing.T) {
	base := &Error{Kind: Resolution, Version: "0.1.0", Err: errors.New("version not found")}
	wrapped := fmt.Errorf("prepare: %w", base)

	if got := KindOf(wrapped); got != Resolution {
		t.Fatalf("KindOf = %s, want resolution", got)
	}
	if !Is(wrapped, Resolution) {
		t.Fatal("expected Is(wrapped, Resolution)")
	}
	if Is(wrapped, Network) {
		t.Fatal("did not expect Is(wrapped, Network)")
	}
	if KindOf(errors.New("plain")) != Other {
		t.Fatal("plain errors should classify as Other")
	}
	if Is(nil, Other) {
		t.Fatal("nil error must not match any kind")
	}
}

func TestRetryableOnlyForNetwork(t *testing.T) {
	for _, kind := range []Kind{Other, Config, Resolution, Network, IO, Dispatch} {
		err := &Error{Kind: kind}
		if got, want := IsRetryable(err), kind == Network; got != want {
			t.Fatalf("IsRetryable(%s) = %v, want %v", kind, got, want)
		}
	}
	if IsRetryable(errors.New("plain")) {
		t.Fatal("plain errors are not retryable")
	}
}

func TestUnwrapKeepsCause(t *testing.T) {
	err := &Error{Kind: IO, Op: "remove cache entry", Err: io.ErrUnexpectedEOF}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatal("expected errors.Is to reach the cause")
	}
}
