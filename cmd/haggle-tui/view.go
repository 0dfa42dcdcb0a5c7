package main

import (
	"fmt"
	"strings"

	"haggle/internal/negotiation"
	"haggle/internal/transcript"

	"github.com/charmbracelet/lipgloss"
)

type uiTheme struct {
	root        lipgloss.Style
	header      lipgloss.Style
	title       lipgloss.Style
	panel       lipgloss.Style
	panelTitle  lipgloss.Style
	footer      lipgloss.Style
	status      lipgloss.Style
	errorStatus lipgloss.Style
	inputPanel  lipgloss.Style
	helpText    lipgloss.Style
	key         lipgloss.Style
	value       lipgloss.Style
	banner      lipgloss.Style
	dealButton  lipgloss.Style
	noDealBtn   lipgloss.Style
	modal       lipgloss.Style
	speaker     map[transcript.Speaker]lipgloss.Style
}

func newTheme() uiTheme {
	pink := lipgloss.Color("#ff71ce")
	blue := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	gold := lipgloss.Color("#ffd166")
	bg := lipgloss.Color("#120924")
	panelBg := lipgloss.Color("#1b0f35")
	ink := lipgloss.Color("#22062f")
	text := lipgloss.Color("#f3f3ff")
	muted := lipgloss.Color("#9ca3d8")

	bordered := func(color lipgloss.Color) lipgloss.Style {
		return lipgloss.NewStyle().
			Background(panelBg).
			Foreground(text).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(color).
			Padding(0, 1)
	}

	return uiTheme{
		root:        lipgloss.NewStyle().Background(bg).Foreground(text).Padding(0, 1),
		header:      bordered(blue),
		title:       lipgloss.NewStyle().Background(pink).Foreground(ink).Bold(true).Padding(0, 1),
		panel:       bordered(blue),
		panelTitle:  lipgloss.NewStyle().Foreground(mint).Bold(true),
		footer:      bordered(pink).Foreground(muted),
		status:      lipgloss.NewStyle().Foreground(blue).Bold(true),
		errorStatus: lipgloss.NewStyle().Foreground(pink).Bold(true),
		inputPanel:  bordered(mint),
		helpText:    lipgloss.NewStyle().Foreground(muted),
		key:         lipgloss.NewStyle().Foreground(blue),
		value:       lipgloss.NewStyle().Foreground(text),
		banner:      lipgloss.NewStyle().Foreground(gold).Bold(true),
		dealButton:  lipgloss.NewStyle().Background(mint).Foreground(ink).Bold(true).Padding(0, 1),
		noDealBtn:   lipgloss.NewStyle().Background(pink).Foreground(ink).Bold(true).Padding(0, 1),
		modal: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(blue).
			Padding(1, 2),
		speaker: map[transcript.Speaker]lipgloss.Style{
			transcript.Customer:     lipgloss.NewStyle().Foreground(mint).Bold(true),
			transcript.Counterparty: lipgloss.NewStyle().Foreground(pink).Bold(true),
		},
	}
}

func (m model) View() string {
	if m.quitConfirm {
		return m.theme.root.Render(m.renderQuitModal())
	}
	header := m.renderHeader()
	content := m.renderContent()
	input := m.renderInput()
	footer := m.renderFooter()
	return m.theme.root.Render(lipgloss.JoinVertical(lipgloss.Left, header, content, input, footer))
}

func (m *model) renderHeader() string {
	product := m.mgr.Product()
	segments := []string{
		m.theme.title.Render("Haggle"),
		m.theme.helpText.Render(fmt.Sprintf(" %s · list %s", product.Name, negotiation.FormatAmount(product.Currency, product.ListPrice))),
	}
	if user := m.mgr.UserID(); user != "" {
		segments = append(segments, m.theme.helpText.Render(" · "+user))
	}
	if sess, ok := m.mgr.CurrentSession(); ok {
		segments = append(segments, m.theme.helpText.Render(fmt.Sprintf(" · session %s (%s)", truncate(sess.ID, 12), sess.Lifecycle)))
	}
	return m.theme.header.Width(maxInt(20, m.width-4)).Render(lipgloss.JoinHorizontal(lipgloss.Left, segments...))
}

func (m *model) renderContent() string {
	contentHeight := maxInt(8, m.height-12)
	contentWidth := maxInt(40, m.width-4)

	switch pres := m.presentation(); pres {
	case presentNameEntry:
		body := m.theme.panelTitle.Render("Welcome to Haggle") + "\n\n" +
			"Name your price and the seller will answer.\n" +
			m.theme.helpText.Render("Enter your name below to begin.")
		return m.theme.panel.Width(contentWidth).Height(contentHeight).Render(body)
	case presentProduct:
		return m.theme.panel.Width(contentWidth).Height(contentHeight).Render(m.renderProduct())
	default:
		leftWidth, rightWidth := chatWidths(contentWidth, pres)
		left := m.theme.panel.Width(leftWidth).Height(contentHeight).Render(
			m.theme.panelTitle.Render("Negotiation") + "\n" + m.timeline.View(),
		)
		if rightWidth == 0 {
			return left
		}
		right := m.theme.panel.Width(rightWidth).Height(contentHeight).Render(
			m.theme.panelTitle.Render("Session") + "\n" + m.renderSidebar(),
		)
		return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	}
}

func (m *model) renderProduct() string {
	product := m.mgr.Product()
	rows := []string{
		m.theme.panelTitle.Render(nullCoalesce(product.Name, "Product " + product.ID)),
		"",
		m.theme.key.Render("List price  ") + m.theme.value.Render(negotiation.FormatAmount(product.Currency, product.ListPrice)),
		m.theme.key.Render("Product id  ") + m.theme.value.Render(product.ID),
		"",
		m.theme.dealButton.Render("Enter / N  Negotiate") + "  " + m.theme.helpText.Render("Q  Quit"),
	}
	return strings.Join(rows, "\n")
}

func (m *model) renderSidebar() string {
	ui := m.orch.UIState()
	sess, _ := m.mgr.CurrentSession()
	row := func(k, v string) string {
		return m.theme.key.Render(padRight(k, 10)) + m.theme.value.Render(v)
	}
	rows := []string{
		row("Session", nullCoalesce(truncate(sess.ID, 18), "n/a")),
		row("Status", string(sess.Lifecycle)),
		row("State", string(ui.State)),
		row("Product", nullCoalesce(sess.Product.Name, sess.Product.ID)),
		row("List", negotiation.FormatAmount(sess.Product.Currency, sess.Product.ListPrice)),
		row("Messages", fmt.Sprintf("%d", m.mgr.Transcript().Len())),
	}
	if !sess.StartedAt.IsZero() {
		rows = append(rows, row("Started", sess.StartedAt.Local().Format("15:04:05")))
	}
	if sess.Lifecycle == negotiation.LifecycleClosed {
		rows = append(rows, row("Outcome", closeReasonLabel(sess.CloseReason)))
	}
	if len(m.logs) > 0 {
		rows = append(rows, "", m.theme.panelTitle.Render("Activity"))
		start := maxInt(0, len(m.logs)-5)
		for _, line := range m.logs[start:] {
			rows = append(rows, m.theme.helpText.Render(truncate(line, maxInt(10, m.timeline.Width/2))))
		}
	}
	return strings.Join(rows, "\n")
}

func (m *model) renderTimeline() string {
	entries := m.mgr.Transcript().Snapshot()
	if len(entries) == 0 {
		return m.theme.helpText.Render("No messages yet.")
	}
	width := maxInt(20, m.timeline.Width-2)
	var b strings.Builder
	for _, e := range entries {
		style, ok := m.theme.speaker[e.Speaker]
		if !ok {
			style = m.theme.helpText
		}
		b.WriteString(style.Render(fmt.Sprintf("%s %s", e.CreatedAt.Local().Format("15:04"), speakerLabel(e.Speaker))))
		b.WriteString("\n")
		if e.Pending {
			b.WriteString(m.spinner.View() + " " + m.theme.helpText.Render("thinking..."))
		} else {
			b.WriteString(wrapText(e.Content, width))
		}
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *model) renderInput() string {
	contentWidth := maxInt(40, m.width-4)
	ui := m.orch.UIState()
	switch ui.CurrentView {
	case negotiation.ViewProduct:
		line := m.theme.helpText.Render("Press Enter to open a negotiation.")
		if ui.Busy {
			line = m.spinner.View() + " connecting..."
		}
		return m.theme.inputPanel.Width(contentWidth).Render(line)
	case negotiation.ViewNegotiation:
		if banner := m.pres.banner(); banner != "" && ui.State == negotiation.StateTerminal {
			return m.theme.inputPanel.Width(contentWidth).Render(m.theme.banner.Render(banner))
		}
		if ui.DecisionPending {
			line := m.theme.dealButton.Render("[D] Deal") + "  " + m.theme.noDealBtn.Render("[X] No Deal")
			if detail := strings.TrimSpace(m.pres.decisionDetail); detail != "" {
				line = m.theme.banner.Render(compactSingleLine(detail, contentWidth-4)) + "\n" + line
			}
			if ui.Busy {
				line = m.spinner.View() + " sending decision... " + line
			}
			return m.theme.inputPanel.Width(contentWidth).Render(line)
		}
	}
	inputView := m.input.View()
	if ui.Busy {
		inputView = m.spinner.View() + " waiting... " + inputView
	}
	return m.theme.inputPanel.Width(contentWidth).Render(inputView)
}

func (m *model) renderFooter() string {
	contentWidth := maxInt(40, m.width-4)
	statusStyle := m.theme.status
	if m.statusErr {
		statusStyle = m.theme.errorStatus
	}
	line := statusStyle.Render(compactSingleLine(m.statusLine, 180))
	return m.theme.footer.Width(contentWidth).Render(line + "\n" + m.theme.helpText.Render(m.keyHints()))
}

func (m *model) keyHints() string {
	ui := m.orch.UIState()
	switch ui.CurrentView {
	case negotiation.ViewNameEntry:
		return "Keys: Enter continue · Esc/Ctrl+C quit"
	case negotiation.ViewProduct:
		return "Keys: Enter/N negotiate · Q quit"
	}
	if ui.CanDecide() {
		return "Keys: D deal · X no deal · PgUp/PgDn scroll · Ctrl+N restart · Esc quit"
	}
	return "Keys: Enter send offer · PgUp/PgDn scroll · Ctrl+N new negotiation · Esc quit"
}

func (m *model) renderQuitModal() string {
	canvasWidth := maxInt(40, m.width-4)
	canvasHeight := maxInt(12, m.height-4)
	modalWidth := clampInt(int(float64(canvasWidth)*0.56), 32, 72)
	if modalWidth > canvasWidth-2 {
		modalWidth = canvasWidth - 2
	}
	body := strings.Join([]string{
		m.theme.errorStatus.Render("LEAVE THE TABLE?"),
		m.theme.helpText.Render("Quitting abandons the current negotiation."),
		"",
		m.theme.noDealBtn.Render("[Y / Enter] Quit") + "    " + m.theme.helpText.Render("[N / Esc] Keep negotiating"),
	}, "\n")
	return lipgloss.Place(
		canvasWidth,
		canvasHeight,
		lipgloss.Center,
		lipgloss.Center,
		m.theme.modal.Width(modalWidth).Render(body),
		lipgloss.WithWhitespaceBackground(lipgloss.Color("#120924")),
	)
}

// renderPanes refreshes the transcript viewport. It stays pinned to the
// bottom when follow is set or when it was already there.
func (m *model) renderPanes(follow bool) {
	prevOffset := m.timeline.YOffset
	atBottom := m.timeline.AtBottom()

	contentHeight := maxInt(8, m.height-12)
	contentWidth := maxInt(40, m.width-4)
	leftWidth, _ := chatWidths(contentWidth, m.presentation())
	m.timeline.Width = maxInt(20, leftWidth-4)
	m.timeline.Height = maxInt(5, contentHeight-3)

	m.timeline.SetContent(m.renderTimeline())
	if follow || atBottom {
		m.timeline.GotoBottom()
	} else {
		m.timeline.SetYOffset(prevOffset)
	}
}

func (m *model) resize() {
	contentWidth := maxInt(40, m.width-4)
	m.input.Width = maxInt(20, contentWidth-6)
}

// chatWidths splits the content width between transcript and side panel.
func chatWidths(contentWidth int, pres presentation) (left int, right int) {
	if pres != presentChatWide {
		return contentWidth, 0
	}
	left = int(float64(contentWidth) * 0.66)
	right = contentWidth - left - 1
	if right < 28 {
		right = 28
		left = contentWidth - right - 1
	}
	return left, right
}
