package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"haggle/internal/negotiation"
	"haggle/internal/remote"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const archiveTimeout = 5 * time.Second

// recorder persists closed negotiations.
type recorder interface {
	RecordClosed(ctx context.Context, ev negotiation.Event) (string, error)
}

type model struct {
	cfg  appConfig
	mgr  *negotiation.Manager
	orch *negotiation.Orchestrator
	rec  recorder
	pres *presenter

	statusLine  string
	statusErr   bool
	logs        []string
	quitConfirm bool

	width  int
	height int

	input    textinput.Model
	timeline viewport.Model
	spinner  spinner.Model

	theme uiTheme
}

type startDoneMsg struct {
	out negotiation.StartOutcome
}

type offerDoneMsg struct {
	out negotiation.OfferOutcome
}

type decisionDoneMsg struct {
	out negotiation.DecisionOutcome
}

type archivedMsg struct {
	sessionID string
	id        string
	err       error
}

func newModel(cfg appConfig, mgr *negotiation.Manager, rec recorder) model {
	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 200
	input.Placeholder = "Your name"
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1"))

	timeline := viewport.New(0, 0)
	timeline.MouseWheelEnabled = true
	timeline.MouseWheelDelta = 4

	m := model{
		cfg:        cfg,
		mgr:        mgr,
		orch:       mgr.Orchestrator(),
		rec:        rec,
		pres:       newPresenter(mgr),
		statusLine: "Enter your name to begin.",
		logs:       []string{},
		input:      input,
		timeline:   timeline,
		spinner:    sp,
		theme:      newTheme(),
	}
	if name := strings.TrimSpace(cfg.User.Name); name != "" {
		if _, err := mgr.SubmitName(name); err == nil {
			m.setStatus(fmt.Sprintf("Hi %s. Press Enter to start negotiating.", name))
		}
	}
	m.updateFocus(m.orch.UIState())
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textinput.Blink)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.renderPanes(false)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
		if m.mgr.Transcript().HasPending() {
			m.renderPanes(false)
		}
	case startDoneMsg:
		ui, err := m.orch.CompleteBegin(msg.out)
		m.afterCompletion(ui, err)
	case offerDoneMsg:
		ui, err := m.orch.CompleteOffer(msg.out)
		m.afterCompletion(ui, err)
	case decisionDoneMsg:
		ui, err := m.orch.CompleteDecision(msg.out)
		m.afterCompletion(ui, err)
	case archivedMsg:
		if msg.err != nil {
			m.appendLog("archive failed: " + compactSingleLine(msg.err.Error(), 160))
		} else if msg.id != "" {
			m.appendLog("archived negotiation " + msg.sessionID)
		}
	case tea.MouseMsg:
		var cmd tea.Cmd
		m.timeline, cmd = m.timeline.Update(msg)
		cmds = append(cmds, cmd)
	case tea.KeyMsg:
		var cmd tea.Cmd
		m, cmd = m.handleKey(msg)
		cmds = append(cmds, cmd)
	}
	cmds = append(cmds, m.flush()...)
	return m, tea.Batch(cmds...)
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	key := msg.String()
	if m.quitConfirm {
		switch key {
		case "y", "Y", "enter", "ctrl+c":
			return m.quit()
		case "n", "N", "esc":
			m.quitConfirm = false
			m.setStatus("Quit cancelled.")
		}
		return m, nil
	}

	switch key {
	case "ctrl+c", "esc":
		if m.sessionActive() {
			m.beginQuitConfirm()
			return m, nil
		}
		return m.quit()
	case "ctrl+n":
		return m.startNegotiation()
	case "pgup", "ctrl+b":
		m.timeline.LineUp(8)
		return m, nil
	case "pgdown", "ctrl+f":
		m.timeline.LineDown(8)
		return m, nil
	case "home":
		m.timeline.GotoTop()
		return m, nil
	case "end":
		m.timeline.GotoBottom()
		return m, nil
	}

	ui := m.orch.UIState()
	switch ui.CurrentView {
	case negotiation.ViewNameEntry:
		if key == "enter" {
			return m.submitName()
		}
	case negotiation.ViewProduct:
		switch key {
		case "enter", "n", "N":
			return m.startNegotiation()
		case "q", "Q":
			return m.quit()
		}
		return m, nil
	case negotiation.ViewNegotiation:
		if ui.CanDecide() {
			switch key {
			case "d", "D", "y", "Y":
				return m.decide(remote.DecisionDeal)
			case "x", "X", "n", "N":
				return m.decide(remote.DecisionNoDeal)
			}
			return m, nil
		}
		if ui.State == negotiation.StateTerminal {
			return m, nil
		}
		if key == "enter" {
			return m.submitOffer()
		}
	}

	prev := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if ui.CurrentView == negotiation.ViewNegotiation && m.input.Value() != prev {
		m.orch.SetInput(m.input.Value())
		if ui.LastError != nil {
			m.orch.ClearError()
			m.setStatus(statusForState(m.orch.UIState()))
		}
	}
	return m, cmd
}

func (m model) submitName() (model, tea.Cmd) {
	ui, err := m.mgr.SubmitName(m.input.Value())
	if err != nil {
		m.showError(err)
		return m, nil
	}
	m.input.SetValue("")
	m.setStatus(fmt.Sprintf("Hi %s. Press Enter to start negotiating.", m.mgr.UserID()))
	m.updateFocus(ui)
	return m, nil
}

// startNegotiation opens a session. An active session is abandoned first so
// Ctrl+N always leads to a fresh negotiation.
func (m model) startNegotiation() (model, tea.Cmd) {
	if m.orch.UIState().Busy {
		m.showError(negotiation.ErrTurnInFlight)
		return m, nil
	}
	if m.sessionActive() {
		if _, abandoned := m.mgr.Abandon(); abandoned {
			m.appendLog("previous negotiation abandoned")
		}
	}
	call, err := m.orch.PrepareBegin(m.mgr.UserID(), m.cfg.Product.ID)
	if err != nil {
		m.showError(err)
		return m, nil
	}
	m.setStatus("Starting negotiation...")
	m.updateFocus(m.orch.UIState())
	return m, runStart(call)
}

func (m model) submitOffer() (model, tea.Cmd) {
	call, err := m.orch.PrepareOffer(m.input.Value())
	ui := m.orch.UIState()
	if err != nil {
		m.showError(err)
		return m, nil
	}
	m.syncInput(ui)
	m.setStatus("Waiting for the seller...")
	return m, runOffer(call)
}

func (m model) decide(decision remote.Decision) (model, tea.Cmd) {
	call, err := m.orch.PrepareDecision(decision)
	if err != nil {
		m.showError(err)
		return m, nil
	}
	m.setStatus("Sending your decision...")
	return m, runDecision(call)
}

func (m *model) afterCompletion(ui negotiation.UIState, err error) {
	if errors.Is(err, negotiation.ErrStaleCall) {
		log.Debug().Msg("dropped stale negotiation completion")
		return
	}
	if err != nil {
		m.showError(err)
	} else {
		m.setStatus(statusForState(ui))
	}
	m.syncInput(ui)
	m.updateFocus(ui)
}

// flush turns notifications collected since the last Update into redraws and
// archive writes.
func (m *model) flush() []tea.Cmd {
	if m.pres.takeDirty() {
		m.renderPanes(true)
	}
	var cmds []tea.Cmd
	for _, ev := range m.pres.takeClosed() {
		if cmd := m.archiveCmd(ev); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return cmds
}

// quit abandons an active session and archives it before the program exits.
func (m model) quit() (model, tea.Cmd) {
	m.quitConfirm = false
	if _, abandoned := m.mgr.Abandon(); abandoned {
		m.appendLog("negotiation abandoned")
	}
	m.pres.takeDirty()
	for _, ev := range m.pres.takeClosed() {
		if cmd := m.archiveCmd(ev); cmd != nil {
			if done, ok := cmd().(archivedMsg); ok && done.err != nil {
				log.Warn().Err(done.err).Str("session_id", done.sessionID).Msg("archive on quit failed")
			}
		}
	}
	return m, tea.Quit
}

func (m *model) beginQuitConfirm() {
	m.quitConfirm = true
	m.setStatus("Quit and abandon this negotiation?")
}

func (m model) sessionActive() bool {
	sess, ok := m.mgr.CurrentSession()
	return ok && sess.Lifecycle == negotiation.LifecycleActive
}

func (m model) presentation() presentation {
	return selectPresentation(m.orch.UIState().CurrentView, m.width)
}

func (m *model) syncInput(ui negotiation.UIState) {
	if ui.CurrentView != negotiation.ViewNegotiation {
		return
	}
	if m.input.Value() != ui.InputBuffer {
		m.input.SetValue(ui.InputBuffer)
		m.input.CursorEnd()
	}
}

func (m *model) updateFocus(ui negotiation.UIState) {
	switch ui.CurrentView {
	case negotiation.ViewNameEntry:
		m.input.Placeholder = "Your name"
		m.input.Focus()
	case negotiation.ViewProduct:
		m.input.Blur()
	default:
		m.input.Placeholder = "Your offer, e.g. " + negotiation.FormatAmount(m.mgr.Product().Currency, m.mgr.Product().ListPrice*0.8)
		if ui.State == negotiation.StateTerminal || ui.CanDecide() {
			m.input.Blur()
		} else {
			m.input.Focus()
		}
	}
}

func (m *model) setStatus(line string) {
	m.statusLine = line
	m.statusErr = false
}

func (m *model) showError(err error) {
	if err == nil {
		return
	}
	m.appendLog("error: " + err.Error())
	m.statusLine = negotiation.UserMessage(err)
	m.statusErr = true
}

func (m *model) appendLog(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	m.logs = append(m.logs, fmt.Sprintf("%s %s", time.Now().Format("15:04:05"), compactSingleLine(trimmed, 220)))
	if len(m.logs) > 50 {
		m.logs = m.logs[len(m.logs)-50:]
	}
}

func statusForState(ui negotiation.UIState) string {
	switch ui.State {
	case negotiation.StateSessionIdle:
		return "Your turn. Type an offer and press Enter."
	case negotiation.StateAwaitingDecision:
		return "Final offer. Press D for Deal or X for No Deal."
	case negotiation.StateTerminal:
		return "Negotiation closed. Press Ctrl+N to start again."
	case negotiation.StateTurnInFlight, negotiation.StateAwaitingSessionStart:
		return "Waiting for the seller..."
	default:
		return "Press Enter to start negotiating."
	}
}

func runStart(call *negotiation.StartCall) tea.Cmd {
	return func() tea.Msg {
		return startDoneMsg{out: call.Run(context.Background())}
	}
}

func runOffer(call *negotiation.OfferCall) tea.Cmd {
	return func() tea.Msg {
		return offerDoneMsg{out: call.Run(context.Background())}
	}
}

func runDecision(call *negotiation.DecisionCall) tea.Cmd {
	return func() tea.Msg {
		return decisionDoneMsg{out: call.Run(context.Background())}
	}
}

func (m model) archiveCmd(ev negotiation.Event) tea.Cmd {
	if m.rec == nil {
		return nil
	}
	rec := m.rec
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		id, err := rec.RecordClosed(ctx, ev)
		return archivedMsg{sessionID: ev.Session.ID, id: id, err: err}
	}
}
