package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := New(CodeSessionNotFound, "session missing")
	target := New(CodeSessionNotFound, "different message")

	if !stderrors.Is(err, target) {
		t.Fatal("expected errors with the same code to match")
	}
	if stderrors.Is(err, New(CodeSessionEnded, "session missing")) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestErrorUnwrapReturnsCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(CodeStorageUnavailable, "persist session", cause)

	if !stderrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be found in chain")
	}
}

func TestCodeOfWalksChain(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeActionOnCooldown, "sabotage cooling down"))
	if code := CodeOf(err); code != CodeActionOnCooldown {
		t.Fatalf("expected ACTION_ON_COOLDOWN, got %s", code)
	}
	if code := CodeOf(stderrors.New("plain")); code != CodeUnknown {
		t.Fatalf("expected UNKNOWN for plain error, got %s", code)
	}
	if code := CodeOf(nil); code != CodeUnknown {
		t.Fatalf("expected UNKNOWN for nil error, got %s", code)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		code Code
		want int
	}{
		{CodeSessionNotFound, http.StatusNotFound},
		{CodeActionAlreadySubmitted, http.StatusConflict},
		{CodeActionMalformed, http.StatusBadRequest},
		{CodeIdentityTokenInvalid, http.StatusUnauthorized},
		{CodeStorageUnavailable, http.StatusServiceUnavailable},
		{CodeUnknown, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Fatalf("expected %s to map to %d, got %d", tc.code, tc.want, got)
		}
	}
}
