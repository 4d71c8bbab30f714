package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := New(CodeFactionNotFound, "faction missing")
	if !stderrors.Is(err, New(CodeFactionNotFound, "other message")) {
		t.Fatal("expected errors with equal codes to match")
	}
	if stderrors.Is(err, New(CodeAllianceNotFound, "faction missing")) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(CodePersistenceFailure, "write snapshot", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be found in chain")
	}
}

func TestCodeOf(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeNameTaken, "duplicate"))
	if got := CodeOf(err); got != CodeNameTaken {
		t.Fatalf("expected NAME_TAKEN, got %s", got)
	}
	if got := CodeOf(stderrors.New("plain")); got != CodeUnknown {
		t.Fatalf("expected UNKNOWN for plain error, got %s", got)
	}
}

func TestGRPCCodeMapping(t *testing.T) {
	tests := []struct {
		code Code
		want codes.Code
	}{
		{CodeNameInvalid, codes.InvalidArgument},
		{CodeActorNotFounder, codes.PermissionDenied},
		{CodeFactionNotFound, codes.NotFound},
		{CodeAllianceCapExceeded, codes.ResourceExhausted},
		{CodeStaleRevision, codes.Aborted},
		{CodePersistenceFailure, codes.Internal},
		{Code("BOGUS"), codes.Unknown},
	}
	for _, tt := range tests {
		if got := tt.code.GRPCCode(); got != tt.want {
			t.Fatalf("code %s: expected %v, got %v", tt.code, tt.want, got)
		}
	}
}

func TestToGRPCStatusCarriesDetails(t *testing.T) {
	err := WithMetadata(CodeNameTaken, "duplicate name", map[string]string{"Name": "Red"})
	st := status.Convert(err.ToGRPCStatus("en-US", "A faction or alliance named Red already exists."))
	if st.Code() != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", st.Code())
	}
	if st.Message() != "duplicate name" {
		t.Fatalf("expected internal message, got %q", st.Message())
	}
	if len(st.Details()) != 2 {
		t.Fatalf("expected 2 detail messages, got %d", len(st.Details()))
	}
}
