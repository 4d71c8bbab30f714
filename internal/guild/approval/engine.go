package approval

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	apperrors "github.com/concordia-bot/concordia/internal/platform/errors"
	"github.com/concordia-bot/concordia/internal/platform/id"
)

// RegisterInput describes a pending approval to open.
type RegisterInput struct {
	Kind        Kind
	RequesterID string
	TargetID    string
	// Authorize re-derives whether the signaler may accept this request. It
	// is evaluated at signal time, never at registration time, so membership
	// changes while the request is open are honored.
	Authorize func(ctx context.Context, signalerID string) (bool, error)
	// Apply performs the underlying effect. The engine guarantees it runs at
	// most once per request.
	Apply func(ctx context.Context) error
}

type request struct {
	Pending

	// mu serializes signal handling for this request. The state transition
	// and the effect run under it, so a second concurrent signal observes
	// the resolved state instead of re-applying the effect.
	mu        sync.Mutex
	state     State
	authorize func(ctx context.Context, signalerID string) (bool, error)
	apply     func(ctx context.Context) error
}

// Engine tracks open approval requests and routes accept signals to them.
type Engine struct {
	mu       sync.Mutex
	requests map[string]*request

	clock       func() time.Time
	idGenerator func() (string, error)
	tickets     *TicketIssuer
}

// NewEngine creates an engine. tickets may be nil, which disables grant
// ticket minting and verification.
func NewEngine(tickets *TicketIssuer) *Engine {
	return &Engine{
		requests:    map[string]*request{},
		clock:       time.Now,
		idGenerator: id.NewID,
		tickets:     tickets,
	}
}

// Register opens a pending approval and returns its public description.
func (e *Engine) Register(ctx context.Context, input RegisterInput) (Pending, error) {
	if err := ctx.Err(); err != nil {
		return Pending{}, err
	}
	if input.Kind == KindUnspecified {
		return Pending{}, fmt.Errorf("approval kind is required")
	}
	if strings.TrimSpace(input.RequesterID) == "" {
		return Pending{}, fmt.Errorf("approval requester id is required")
	}
	if strings.TrimSpace(input.TargetID) == "" {
		return Pending{}, fmt.Errorf("approval target id is required")
	}
	if input.Authorize == nil || input.Apply == nil {
		return Pending{}, fmt.Errorf("approval authorize and apply callbacks are required")
	}

	requestID, err := e.idGenerator()
	if err != nil {
		return Pending{}, fmt.Errorf("generate approval id: %w", err)
	}

	pending := Pending{
		ID:          requestID,
		Kind:        input.Kind,
		RequesterID: strings.TrimSpace(input.RequesterID),
		TargetID:    strings.TrimSpace(input.TargetID),
		CreatedAt:   e.clock().UTC(),
	}
	if e.tickets != nil {
		ticket, err := e.tickets.Mint(pending)
		if err != nil {
			return Pending{}, fmt.Errorf("mint approval ticket: %w", err)
		}
		pending.Ticket = ticket
	}

	e.mu.Lock()
	e.requests[requestID] = &request{
		Pending:   pending,
		state:     StateOpen,
		authorize: input.Authorize,
		apply:     input.Apply,
	}
	e.mu.Unlock()

	return pending, nil
}

// Signal delivers an accept signal for a request. The signaler's authority is
// re-derived now; an unauthorized signal is a no-op. The first authorized
// signal applies the effect and resolves the request; later signals no-op.
// ticket is required when the engine is configured with a ticket issuer.
func (e *Engine) Signal(ctx context.Context, requestID, signalerID, ticket string) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	e.mu.Lock()
	r, ok := e.requests[requestID]
	e.mu.Unlock()
	if !ok {
		return Outcome{}, apperrors.WithMetadata(apperrors.CodeApprovalNotFound,
			"approval request not found", map[string]string{"RequestID": requestID})
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateOpen {
		return Outcome{Applied: false, State: r.state}, nil
	}

	if e.tickets != nil {
		if err := e.tickets.Verify(ticket, r.Pending); err != nil {
			return Outcome{}, err
		}
	}

	authorized, err := r.authorize(ctx, signalerID)
	if err != nil {
		return Outcome{}, fmt.Errorf("authorize signal: %w", err)
	}
	if !authorized {
		return Outcome{Applied: false, State: StateOpen}, nil
	}

	if err := r.apply(ctx); err != nil {
		// The effect did not land; the request stays open for a retry.
		return Outcome{}, err
	}

	r.state = StateAccepted
	return Outcome{Applied: true, State: StateAccepted}, nil
}

// Cancel withdraws an open request. Resolved requests cannot be cancelled.
func (e *Engine) Cancel(ctx context.Context, requestID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	r, ok := e.requests[requestID]
	e.mu.Unlock()
	if !ok {
		return apperrors.WithMetadata(apperrors.CodeApprovalNotFound,
			"approval request not found", map[string]string{"RequestID": requestID})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateOpen {
		return apperrors.New(apperrors.CodeApprovalResolved, "approval request already resolved")
	}
	r.state = StateCancelled
	return nil
}

// StateOf reports the current state of a request.
func (e *Engine) StateOf(requestID string) State {
	e.mu.Lock()
	r, ok := e.requests[requestID]
	e.mu.Unlock()
	if !ok {
		return StateUnspecified
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// OpenRequests lists currently open requests, newest last.
func (e *Engine) OpenRequests() []Pending {
	e.mu.Lock()
	defer e.mu.Unlock()
	var open []Pending
	for _, r := range e.requests {
		r.mu.Lock()
		if r.state == StateOpen {
			open = append(open, r.Pending)
		}
		r.mu.Unlock()
	}
	return open
}
