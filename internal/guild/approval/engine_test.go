package approval

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "github.com/concordia-bot/concordia/internal/platform/errors"
)

func testEngine() *Engine {
	e := NewEngine(nil)
	e.clock = func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}
	counter := 0
	e.idGenerator = func() (string, error) {
		counter++
		return "req-" + string(rune('0'+counter)), nil
	}
	return e
}

func registerTestRequest(t *testing.T, e *Engine, authorize func(ctx context.Context, signalerID string) (bool, error), apply func(ctx context.Context) error) Pending {
	t.Helper()
	pending, err := e.Register(context.Background(), RegisterInput{
		Kind:        KindFactionJoin,
		RequesterID: "member-1",
		TargetID:    "fac-1",
		Authorize:   authorize,
		Apply:       apply,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return pending
}

func TestRegisterValidatesInput(t *testing.T) {
	e := testEngine()
	ctx := context.Background()

	authorize := func(context.Context, string) (bool, error) { return true, nil }
	apply := func(context.Context) error { return nil }

	tests := []struct {
		name  string
		input RegisterInput
	}{
		{"missing kind", RegisterInput{RequesterID: "m", TargetID: "f", Authorize: authorize, Apply: apply}},
		{"missing requester", RegisterInput{Kind: KindFactionJoin, TargetID: "f", Authorize: authorize, Apply: apply}},
		{"missing target", RegisterInput{Kind: KindFactionJoin, RequesterID: "m", Authorize: authorize, Apply: apply}},
		{"missing callbacks", RegisterInput{Kind: KindFactionJoin, RequesterID: "m", TargetID: "f"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.Register(ctx, tt.input); err == nil {
				t.Fatal("expected registration to fail")
			}
		})
	}
}

func TestSignalAppliesOnceForAuthorizedSignaler(t *testing.T) {
	e := testEngine()
	ctx := context.Background()

	applied := 0
	pending := registerTestRequest(t, e,
		func(_ context.Context, signalerID string) (bool, error) {
			return signalerID == "admin-1", nil
		},
		func(context.Context) error {
			applied++
			return nil
		},
	)

	outcome, err := e.Signal(ctx, pending.ID, "admin-1", "")
	if err != nil {
		t.Fatalf("signal: %v", err)
	}
	if !outcome.Applied || outcome.State != StateAccepted {
		t.Fatalf("expected applied accept, got %+v", outcome)
	}
	if applied != 1 {
		t.Fatalf("expected one apply, got %d", applied)
	}

	// A later signal observes the resolved state and does nothing.
	outcome, err = e.Signal(ctx, pending.ID, "admin-1", "")
	if err != nil {
		t.Fatalf("second signal: %v", err)
	}
	if outcome.Applied || outcome.State != StateAccepted {
		t.Fatalf("expected resolved no-op, got %+v", outcome)
	}
	if applied != 1 {
		t.Fatalf("expected apply not to rerun, got %d", applied)
	}
}

func TestSignalIgnoresUnauthorizedSignaler(t *testing.T) {
	e := testEngine()
	ctx := context.Background()

	applied := 0
	pending := registerTestRequest(t, e,
		func(_ context.Context, signalerID string) (bool, error) {
			return signalerID == "admin-1", nil
		},
		func(context.Context) error {
			applied++
			return nil
		},
	)

	outcome, err := e.Signal(ctx, pending.ID, "stranger", "")
	if err != nil {
		t.Fatalf("signal: %v", err)
	}
	if outcome.Applied || outcome.State != StateOpen {
		t.Fatalf("expected open no-op, got %+v", outcome)
	}
	if applied != 0 {
		t.Fatal("expected no apply for unauthorized signal")
	}
	if e.StateOf(pending.ID) != StateOpen {
		t.Fatal("expected request to stay open")
	}
}

func TestSignalUnknownRequest(t *testing.T) {
	e := testEngine()

	_, err := e.Signal(context.Background(), "missing", "admin-1", "")
	if apperrors.CodeOf(err) != apperrors.CodeApprovalNotFound {
		t.Fatalf("expected approval not found, got %v", err)
	}
}

func TestSignalApplyFailureKeepsRequestOpen(t *testing.T) {
	e := testEngine()
	ctx := context.Background()

	boom := errors.New("directory unavailable")
	calls := 0
	pending := registerTestRequest(t, e,
		func(context.Context, string) (bool, error) { return true, nil },
		func(context.Context) error {
			calls++
			if calls == 1 {
				return boom
			}
			return nil
		},
	)

	if _, err := e.Signal(ctx, pending.ID, "admin-1", ""); !errors.Is(err, boom) {
		t.Fatalf("expected apply error surfaced, got %v", err)
	}
	if e.StateOf(pending.ID) != StateOpen {
		t.Fatal("expected failed apply to leave request open")
	}

	outcome, err := e.Signal(ctx, pending.ID, "admin-1", "")
	if err != nil {
		t.Fatalf("retry signal: %v", err)
	}
	if !outcome.Applied {
		t.Fatal("expected retry to apply")
	}
}

func TestConcurrentSignalsApplyExactlyOnce(t *testing.T) {
	e := testEngine()
	ctx := context.Background()

	var applyMu sync.Mutex
	applied := 0
	pending := registerTestRequest(t, e,
		func(context.Context, string) (bool, error) { return true, nil },
		func(context.Context) error {
			applyMu.Lock()
			applied++
			applyMu.Unlock()
			return nil
		},
	)

	const signalers = 8
	outcomes := make([]Outcome, signalers)
	var wg sync.WaitGroup
	for i := 0; i < signalers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome, err := e.Signal(ctx, pending.ID, "admin-1", "")
			if err != nil {
				t.Errorf("signal %d: %v", i, err)
				return
			}
			outcomes[i] = outcome
		}(i)
	}
	wg.Wait()

	if applied != 1 {
		t.Fatalf("expected exactly one apply, got %d", applied)
	}
	winners := 0
	for _, outcome := range outcomes {
		if outcome.Applied {
			winners++
		}
		if outcome.State != StateAccepted {
			t.Fatalf("expected every signaler to observe accepted, got %+v", outcome)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winning signal, got %d", winners)
	}
}

func TestCancelOpenRequest(t *testing.T) {
	e := testEngine()
	ctx := context.Background()

	applied := 0
	pending := registerTestRequest(t, e,
		func(context.Context, string) (bool, error) { return true, nil },
		func(context.Context) error {
			applied++
			return nil
		},
	)

	if err := e.Cancel(ctx, pending.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if e.StateOf(pending.ID) != StateCancelled {
		t.Fatal("expected cancelled state")
	}

	// Signals after cancellation no-op.
	outcome, err := e.Signal(ctx, pending.ID, "admin-1", "")
	if err != nil {
		t.Fatalf("signal after cancel: %v", err)
	}
	if outcome.Applied || outcome.State != StateCancelled {
		t.Fatalf("expected cancelled no-op, got %+v", outcome)
	}
	if applied != 0 {
		t.Fatal("expected no apply after cancellation")
	}

	if err := e.Cancel(ctx, pending.ID); apperrors.CodeOf(err) != apperrors.CodeApprovalResolved {
		t.Fatalf("expected already-resolved error, got %v", err)
	}
}

func TestOpenRequestsListsOnlyOpen(t *testing.T) {
	e := testEngine()
	ctx := context.Background()

	authorize := func(context.Context, string) (bool, error) { return true, nil }
	apply := func(context.Context) error { return nil }

	first := registerTestRequest(t, e, authorize, apply)
	second, err := e.Register(ctx, RegisterInput{
		Kind:        KindAllianceJoin,
		RequesterID: "fac-2",
		TargetID:    "all-1",
		Authorize:   authorize,
		Apply:       apply,
	})
	if err != nil {
		t.Fatalf("register second: %v", err)
	}

	if _, err := e.Signal(ctx, first.ID, "admin-1", ""); err != nil {
		t.Fatalf("signal: %v", err)
	}

	open := e.OpenRequests()
	if len(open) != 1 || open[0].ID != second.ID {
		t.Fatalf("expected only the second request open, got %+v", open)
	}
}
