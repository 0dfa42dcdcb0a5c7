package negotiation

import (
	"context"
	"strings"
	"time"

	"haggle/internal/transcript"

	"github.com/rs/zerolog/log"
)

type Lifecycle string

const (
	LifecycleNotStarted Lifecycle = "notStarted"
	LifecycleActive     Lifecycle = "active"
	LifecycleClosed     Lifecycle = "closed"
)

type CloseReason string

const (
	ReasonDealMade  CloseReason = "dealMade"
	ReasonNoDeal    CloseReason = "noDeal"
	ReasonAbandoned CloseReason = "abandoned"
)

type Product struct {
	ID        string
	Name      string
	ListPrice float64
	Currency  string
}

// Session is one negotiation. Only the lifecycle fields change after start.
type Session struct {
	ID          string
	UserID      string
	Product     Product
	Lifecycle   Lifecycle
	CloseReason CloseReason
	StartedAt   time.Time
	ClosedAt    time.Time
}

type EventKind string

const (
	EventSessionStarted    EventKind = "sessionStarted"
	EventDecisionRequested EventKind = "decisionRequested"
	EventSessionClosed     EventKind = "sessionClosed"
)

// Event reports a lifecycle change. Entries is the settled transcript and is
// only filled for EventSessionClosed.
type Event struct {
	Kind    EventKind
	Session Session
	Detail  string
	Entries []transcript.Entry
}

// Manager owns session identity and the coarse view state. It is the only
// holder of the session id; the orchestrator asks it for the id when it
// builds a remote call.
type Manager struct {
	session     Session
	userID      string
	product     Product
	transcript  *transcript.Transcript
	orch        *Orchestrator
	subscribers []func(Event)
	now         func() time.Time
}

func NewManager(client Client, product Product) *Manager {
	if strings.TrimSpace(product.Currency) == "" {
		product.Currency = DefaultCurrency
	}
	m := &Manager{
		session:    Session{Lifecycle: LifecycleNotStarted},
		product:    product,
		transcript: transcript.New(),
		now:        time.Now,
	}
	m.orch = newOrchestrator(client, m, m.transcript)
	return m
}

func (m *Manager) Orchestrator() *Orchestrator {
	return m.orch
}

func (m *Manager) Transcript() *transcript.Transcript {
	return m.transcript
}

func (m *Manager) Product() Product {
	return m.product
}

// UserID is the display identity recorded by SubmitName or the first session.
func (m *Manager) UserID() string {
	return m.userID
}

// CurrentSession returns the session and whether one was ever started.
func (m *Manager) CurrentSession() (Session, bool) {
	return m.session, m.session.Lifecycle != LifecycleNotStarted
}

func (m *Manager) IsTerminal() bool {
	return m.session.Lifecycle == LifecycleClosed
}

func (m *Manager) UIState() UIState {
	return m.orch.UIState()
}

// Subscribe registers fn for lifecycle events. Events are delivered on the
// caller's control flow, after the state change is visible.
func (m *Manager) Subscribe(fn func(Event)) {
	if fn != nil {
		m.subscribers = append(m.subscribers, fn)
	}
}

// SubmitName records the display identity and moves to the product view.
func (m *Manager) SubmitName(name string) (UIState, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return m.orch.fail(ErrEmptyName)
	}
	if m.userID != "" && m.userID != name {
		return m.orch.fail(ErrUserMismatch)
	}
	m.userID = name
	m.orch.ui.LastError = nil
	if m.orch.ui.CurrentView == ViewNameEntry {
		m.orch.ui.CurrentView = ViewProduct
	}
	return m.orch.UIState(), nil
}

// BeginNegotiation starts a session; see Orchestrator.BeginNegotiation.
func (m *Manager) BeginNegotiation(ctx context.Context, userID, productID string) (UIState, error) {
	return m.orch.BeginNegotiation(ctx, userID, productID)
}

// Abandon closes an active session without a deal. A call already in flight
// still completes but its result is dropped.
func (m *Manager) Abandon() (UIState, bool) {
	if m.session.Lifecycle != LifecycleActive {
		return m.orch.UIState(), false
	}
	m.orch.abandon()
	m.close(ReasonAbandoned)
	return m.orch.UIState(), true
}

func (m *Manager) productFor(productID string) Product {
	productID = strings.TrimSpace(productID)
	if productID == "" || productID == m.product.ID {
		return m.product
	}
	return Product{ID: productID, Currency: m.product.Currency}
}

func (m *Manager) sessionID() string {
	if m.session.Lifecycle != LifecycleActive {
		return ""
	}
	return m.session.ID
}

func (m *Manager) activate(id, userID string, product Product) {
	m.userID = userID
	m.session = Session{
		ID:        id,
		UserID:    userID,
		Product:   product,
		Lifecycle: LifecycleActive,
		StartedAt: m.now().UTC(),
	}
	log.Info().Str("session_id", id).Str("user_id", userID).Str("product_id", product.ID).Msg("negotiation session started")
	m.emit(Event{Kind: EventSessionStarted, Session: m.session})
}

func (m *Manager) close(reason CloseReason) {
	if m.session.Lifecycle != LifecycleActive {
		return
	}
	m.session.Lifecycle = LifecycleClosed
	m.session.CloseReason = reason
	m.session.ClosedAt = m.now().UTC()
	log.Info().Str("session_id", m.session.ID).Str("reason", string(reason)).Msg("negotiation session closed")
	m.emit(Event{Kind: EventSessionClosed, Session: m.session, Entries: m.transcript.Settled()})
}

func (m *Manager) emit(ev Event) {
	for _, fn := range m.subscribers {
		fn(ev)
	}
}
