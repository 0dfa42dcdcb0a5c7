package main

import (
	"haggle/internal/negotiation"
	"haggle/internal/transcript"
)

type presentation int

const (
	presentNameEntry presentation = iota
	presentProduct
	presentChat
	presentChatWide
)

// wideChatMinWidth is the terminal width from which the session side panel
// is shown next to the transcript.
const wideChatMinWidth = 100

func (p presentation) String() string {
	switch p {
	case presentNameEntry:
		return "nameEntry"
	case presentProduct:
		return "product"
	case presentChat:
		return "chat"
	case presentChatWide:
		return "chatWide"
	default:
		return "unknown"
	}
}

func selectPresentation(view negotiation.View, width int) presentation {
	switch view {
	case negotiation.ViewNameEntry:
		return presentNameEntry
	case negotiation.ViewProduct:
		return presentProduct
	}
	if width >= wideChatMinWidth {
		return presentChatWide
	}
	return presentChat
}

// presenter collects what the manager and transcript report between two
// Update calls. It is shared by pointer so copies of the model see the same
// notifications.
type presenter struct {
	session         negotiation.Session
	closed          bool
	decisionDetail  string
	transcriptDirty bool
	toArchive       []negotiation.Event
}

func newPresenter(mgr *negotiation.Manager) *presenter {
	p := &presenter{}
	mgr.Subscribe(p.handle)
	mgr.Transcript().OnChange(func(transcript.Change) { p.transcriptDirty = true })
	return p
}

func (p *presenter) handle(ev negotiation.Event) {
	p.session = ev.Session
	switch ev.Kind {
	case negotiation.EventSessionStarted:
		p.closed = false
		p.decisionDetail = ""
	case negotiation.EventDecisionRequested:
		p.decisionDetail = ev.Detail
	case negotiation.EventSessionClosed:
		p.closed = true
		p.decisionDetail = ""
		p.toArchive = append(p.toArchive, ev)
	}
}

// takeClosed hands out SessionClosed events not yet archived.
func (p *presenter) takeClosed() []negotiation.Event {
	out := p.toArchive
	p.toArchive = nil
	return out
}

// takeDirty reports whether the transcript changed since the last call.
func (p *presenter) takeDirty() bool {
	dirty := p.transcriptDirty
	p.transcriptDirty = false
	return dirty
}

func (p *presenter) banner() string {
	if !p.closed {
		return ""
	}
	switch p.session.CloseReason {
	case negotiation.ReasonDealMade:
		return "Deal made. Press Ctrl+N to negotiate again."
	case negotiation.ReasonNoDeal:
		return "No deal this time. Press Ctrl+N to try again."
	case negotiation.ReasonAbandoned:
		return "Negotiation abandoned. Press Ctrl+N to start over."
	default:
		return "Negotiation closed."
	}
}

func closeReasonLabel(reason negotiation.CloseReason) string {
	switch reason {
	case negotiation.ReasonDealMade:
		return "deal"
	case negotiation.ReasonNoDeal:
		return "no deal"
	case negotiation.ReasonAbandoned:
		return "abandoned"
	default:
		return string(reason)
	}
}

func speakerLabel(speaker transcript.Speaker) string {
	if speaker == transcript.Customer {
		return "You"
	}
	return "Seller"
}
