package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIncludesInternal(t *testing.T) {
	internal := stdErrors.New("boom")
	err := Wrap(internal, "failed")

	if err.Error() != "failed: boom" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}
}

func TestWithInternalCopies(t *testing.T) {
	base := New("TEST", "test", 400)
	with := base.WithInternal(stdErrors.New("oops"))

	if with == base {
		t.Fatal("expected WithInternal to return a copy")
	}

	if base.Internal != nil {
		t.Fatal("expected original error to remain unchanged")
	}

	if !stdErrors.Is(with, base) {
		t.Fatal("expected copy to match its sentinel")
	}
}

func TestFromError(t *testing.T) {
	appErr := ErrNotFound
	if out := FromError(appErr); out != appErr {
		t.Fatal("expected FromError to return the same AppError instance")
	}

	raw := stdErrors.New("raw")
	out := FromError(raw)
	if out.Code != CodeInternal {
		t.Fatalf("expected internal code, got %s", out.Code)
	}
	if out.Internal == nil {
		t.Fatal("expected internal error to be attached")
	}
}

func TestKindConstructors(t *testing.T) {
	cases := []struct {
		err    *AppError
		code   string
		status int
	}{
		{Unauthenticated("x"), CodeUnauthenticated, http.StatusUnauthorized},
		{InvalidArgument("x"), CodeInvalidArgument, http.StatusBadRequest},
		{NotFound("x"), CodeNotFound, http.StatusNotFound},
		{FailedPrecondition("x"), CodeFailedPrecondition, http.StatusConflict},
		{Internal("x"), CodeInternal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		if tc.err.Code != tc.code || tc.err.StatusCode != tc.status {
			t.Fatalf("unexpected kind %s/%d for %s", tc.err.Code, tc.err.StatusCode, tc.code)
		}
	}
}

func TestKindOfWrappedError(t *testing.T) {
	err := fmt.Errorf("family service: leave: %w", FailedPrecondition("sole parent"))
	if KindOf(err) != CodeFailedPrecondition {
		t.Fatalf("expected failed-precondition, got %s", KindOf(err))
	}
	if KindOf(stdErrors.New("raw")) != CodeInternal {
		t.Fatal("expected foreign errors to map to internal")
	}
}

func TestNewBadRequest(t *testing.T) {
	err := NewBadRequest("invalid payload")
	if err.Code != ErrBadRequest.Code {
		t.Fatalf("expected %s, got %s", ErrBadRequest.Code, err.Code)
	}
	if err.Message != "invalid payload" {
		t.Fatalf("unexpected message: %s", err.Message)
	}
	if err.StatusCode != ErrBadRequest.StatusCode {
		t.Fatalf("unexpected status: %d", err.StatusCode)
	}
}
