package negotiation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"haggle/internal/remote"

	"github.com/stretchr/testify/require"
)

// fakeService replays scripted /negotiate replies in order.
type fakeService struct {
	mu      sync.Mutex
	replies []string
	down    bool
	bodies  []map[string]any
}

func (s *fakeService) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.down {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		s.bodies = append(s.bodies, body)
		switch r.URL.Path {
		case "/start_negotiation":
			_, _ = w.Write([]byte(`{"session_id":"sess-42"}`))
		case "/negotiate":
			if len(s.replies) == 0 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			reply := s.replies[0]
			s.replies = s.replies[1:]
			_, _ = w.Write([]byte(reply))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func startScenario(t *testing.T, replies ...string) (*Manager, *fakeService) {
	t.Helper()
	svc := &fakeService{replies: replies}
	srv := httptest.NewServer(svc.handler(t))
	t.Cleanup(srv.Close)
	client := remote.New(srv.URL, remote.WithTimeout(5*time.Second))
	m := NewManager(client, Product{ID: "1", Name: "Product", ListPrice: 1000})
	return m, svc
}

func TestScenarioA_BeginNegotiation(t *testing.T) {
	m, _ := startScenario(t)
	_, err := m.BeginNegotiation(context.Background(), "alice", "1")
	require.NoError(t, err)

	snap := m.Transcript().Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, "Welcome to negotiation! Please enter your offer.", snap[0].Content)
	require.False(t, snap[0].Pending)
	sess, _ := m.CurrentSession()
	require.Equal(t, LifecycleActive, sess.Lifecycle)
	require.Equal(t, "sess-42", sess.ID)
}

func TestScenarioB_OngoingWithCounterOffer(t *testing.T) {
	m, _ := startScenario(t, `{"status":"ongoing","human_response":"Let's meet in the middle","counter_offer":900}`)
	_, err := m.BeginNegotiation(context.Background(), "alice", "1")
	require.NoError(t, err)

	_, err = m.Orchestrator().SubmitOffer(context.Background(), "₹800")
	require.NoError(t, err)
	require.Equal(t, []string{
		"Welcome to negotiation! Please enter your offer.",
		"₹800",
		"Let's meet in the middle",
		"Our counter offer: ₹900",
	}, contents(m.Transcript().Snapshot()))
	sess, _ := m.CurrentSession()
	require.Equal(t, LifecycleActive, sess.Lifecycle)
}

func TestScenarioC_DealClosed(t *testing.T) {
	m, _ := startScenario(t, `{"status":"success","human_response":"You have a deal.","counter_offer":1000}`)
	_, err := m.BeginNegotiation(context.Background(), "alice", "1")
	require.NoError(t, err)

	_, err = m.Orchestrator().SubmitOffer(context.Background(), "₹1000")
	require.NoError(t, err)
	snap := m.Transcript().Snapshot()
	require.Equal(t, "Deal closed at ₹1000! Thank you for negotiating.", snap[len(snap)-1].Content)
	sess, _ := m.CurrentSession()
	require.Equal(t, LifecycleClosed, sess.Lifecycle)
	require.Equal(t, ReasonDealMade, sess.CloseReason)
}

func TestScenarioD_TransportError(t *testing.T) {
	m, svc := startScenario(t)
	_, err := m.BeginNegotiation(context.Background(), "alice", "1")
	require.NoError(t, err)
	svc.mu.Lock()
	svc.down = true
	svc.mu.Unlock()

	ui, err := m.Orchestrator().SubmitOffer(context.Background(), "₹800")
	require.ErrorIs(t, err, remote.ErrServiceUnavailable)
	requireNoPending(t, m.Transcript())
	require.ErrorIs(t, ui.LastError, remote.ErrServiceUnavailable)
	sess, _ := m.CurrentSession()
	require.Equal(t, LifecycleActive, sess.Lifecycle)
}

func TestScenarioE_FinalDecision(t *testing.T) {
	m, svc := startScenario(t,
		`{"status":"final_decision","human_response":"I can't go lower.","counter_offer":920,"message":"Final offer?"}`,
		`{"human_response":"Deal! Thanks for shopping."}`,
	)
	_, err := m.BeginNegotiation(context.Background(), "alice", "1")
	require.NoError(t, err)

	ui, err := m.Orchestrator().SubmitOffer(context.Background(), "₹850")
	require.NoError(t, err)
	require.True(t, ui.DecisionPending)

	ui, err = m.Orchestrator().SubmitDecision(context.Background(), remote.DecisionDeal)
	require.NoError(t, err)
	require.False(t, ui.DecisionPending)
	sess, _ := m.CurrentSession()
	require.Equal(t, LifecycleClosed, sess.Lifecycle)
	require.Equal(t, ReasonDealMade, sess.CloseReason)

	svc.mu.Lock()
	last := svc.bodies[len(svc.bodies)-1]
	svc.mu.Unlock()
	require.Equal(t, "deal", last["decision"])
	require.Equal(t, "sess-42", last["session_id"])
}
