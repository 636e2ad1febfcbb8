package errors_test

import (
	"errors"
	"strings"
	"testing"

	xe "github.com/modelyard/modelyard/pkg/errors"
)

func TestWrap(t *testing.T) {
	t.Run("wrapped error keeps the original in its chain", func(t *testing.T) {
		root := errors.New("root cause")
		wrapped := xe.Wrap(root)

		if !errors.Is(wrapped, root) {
			t.Error("wrapped error does not unwrap to the original")
		}
	})

	t.Run("message contains callsite and the original message", func(t *testing.T) {
		root := errors.New("root cause")
		wrapped := xe.Wrap(root)

		msg := wrapped.Error()
		if !strings.Contains(msg, "root cause") {
			t.Errorf("message %q loses the cause", msg)
		}
		if !strings.Contains(msg, "errors_test.go") {
			t.Errorf("message %q does not name the wrapping file", msg)
		}
	})

	t.Run("note is shown in the message", func(t *testing.T) {
		wrapped := xe.WrapWithNote("while testing", errors.New("root cause"))

		if msg := wrapped.Error(); !strings.Contains(msg, "while testing") {
			t.Errorf("message %q loses the note", msg)
		}
	})
}

func TestNew(t *testing.T) {
	err := xe.New("something is wrong")
	if !strings.Contains(err.Error(), "something is wrong") {
		t.Errorf("message %q loses the text", err.Error())
	}
}
