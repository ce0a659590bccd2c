package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/perch/internal/imagecache"
	"github.com/five82/perch/internal/twitter"
)

const (
	headerLines  = 1
	footerLines  = 2
	minListWidth = 30
	listWidthPct = 40
	timeLayout   = "Jan 2 15:04"
)

func (m Model) bodyHeight() int {
	return max(1, m.height-headerLines-footerLines)
}

func (m Model) listWidth() int {
	return max(minListWidth, m.width*listWidthPct/100)
}

func (m *Model) resizeDetail() {
	// Pane borders take one cell on each side.
	w := max(10, m.width-m.listWidth()-4)
	h := max(1, m.bodyHeight()-2)
	m.detail.Width = w
	m.detail.Height = h
}

// refreshDetail re-renders the detail pane for the current selection.
func (m *Model) refreshDetail() {
	if !m.ready {
		return
	}
	tw, ok := m.selectedTweet()
	if !ok {
		m.detail.SetContent(m.theme.Styles().MutedText.Render("No tweet selected"))
		return
	}
	m.detail.SetContent(m.renderTweet(tw, m.detail.Width))
}

// renderMain renders header, body and footer.
func (m Model) renderMain() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderBody())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	parts := []string{styles.Logo.Render("perch")}

	switch m.phase {
	case phaseLoggedIn:
		parts = append(parts, styles.Text.Render("@"+m.identity.ScreenName))
		parts = append(parts, styles.MutedText.Render(fmt.Sprintf("%d tweets", len(m.items))))
		if m.loading {
			parts = append(parts, m.spinner.View())
		}
	case phaseDisconnected:
		parts = append(parts, styles.DangerText.Render("offline"))
	}
	if m.update != "" {
		parts = append(parts, styles.WarningText.Render("update available: v"+m.update))
	}
	return styles.Header.Width(m.width).Render(strings.Join(parts, "  "))
}

func (m Model) renderBody() string {
	styles := m.theme.Styles()
	height := m.bodyHeight()

	var content string
	switch m.phase {
	case phaseLoggedOut:
		content = styles.Text.Render("Not logged in.") + "\n\n" +
			styles.MutedText.Render("Press ") + styles.AccentText.Render("l") +
			styles.MutedText.Render(" to log in with your Twitter account.")
	case phaseAwaitingPin:
		content = m.renderPinPrompt()
	case phaseLoggingIn:
		content = m.spinner.View() + " " + styles.Text.Render("Logging in...")
	case phaseDisconnected:
		content = styles.DangerText.Render("Lost connection to background") + "\n\n" +
			styles.MutedText.Render("Press q to quit.")
	case phaseLoggedIn:
		return m.renderFeed(height)
	}
	return lipgloss.Place(m.width, height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) renderPinPrompt() string {
	styles := m.theme.Styles()
	var b strings.Builder
	b.WriteString(styles.Text.Render("Authorize perch in your browser, then enter the PIN shown there."))
	b.WriteString("\n\n")
	b.WriteString(styles.MutedText.Render("If the browser did not open, visit:"))
	b.WriteString("\n")
	b.WriteString(styles.InfoText.Render(m.authURL))
	b.WriteString("\n\n")
	b.WriteString(m.pin.View())
	b.WriteString("\n\n")
	b.WriteString(styles.FaintText.Render("enter to submit, esc to cancel"))
	return b.String()
}

func (m Model) renderFeed(height int) string {
	styles := m.theme.Styles()
	listW := m.listWidth()
	inner := max(1, height-2)

	list := styles.Focused.Width(listW - 2).Height(inner).Render(m.renderList(listW-2, inner))
	detail := styles.Pane.Width(m.detail.Width).Height(inner).Render(m.detail.View())
	return lipgloss.JoinHorizontal(lipgloss.Top, list, detail)
}

// renderList draws a window of rows that keeps the selection visible.
func (m Model) renderList(width, height int) string {
	styles := m.theme.Styles()
	if len(m.items) == 0 {
		if m.loading {
			return m.spinner.View() + " Loading timeline..."
		}
		return styles.MutedText.Render("Timeline is empty. Press r to refresh.")
	}

	start := 0
	if m.selected >= height {
		start = m.selected - height + 1
	}
	end := min(len(m.items), start+height)

	rows := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		rows = append(rows, m.renderRow(m.items[i], i == m.selected, width))
	}
	return strings.Join(rows, "\n")
}

func (m Model) renderRow(tw twitter.Tweet, selected bool, width int) string {
	styles := m.theme.Styles()
	marker := " "
	if tw.ID > m.latestSeen {
		marker = "•"
	}
	name := ""
	if tw.User != nil {
		name = "@" + tw.User.ScreenName
	}
	if tw.RetweetedStatus != nil && tw.RetweetedStatus.User != nil {
		name += " ⟲ @" + tw.RetweetedStatus.User.ScreenName
	}
	text := truncate(fmt.Sprintf("%s %s  %s", marker, name, oneLine(displayBody(tw))), width)
	if selected {
		return styles.Selected.Width(width).Render(text)
	}
	if marker != " " {
		return styles.Unseen.Render(text)
	}
	return styles.Text.Render(text)
}

// displayBody prefers the retweeted text, which the API leaves untruncated.
func displayBody(tw twitter.Tweet) string {
	if tw.RetweetedStatus != nil {
		return tw.RetweetedStatus.Body()
	}
	return tw.Body()
}

// renderTweet renders the detail pane for tw, nesting a retweeted status.
func (m Model) renderTweet(tw twitter.Tweet, width int) string {
	styles := m.theme.Styles()
	var b strings.Builder

	if tw.RetweetedStatus != nil {
		who := "someone"
		if tw.User != nil {
			who = "@" + tw.User.ScreenName
		}
		b.WriteString(styles.MutedText.Render("⟲ retweeted by " + who))
		b.WriteString("\n\n")
		b.WriteString(m.renderTweet(*tw.RetweetedStatus, width))
		return b.String()
	}

	if tw.User != nil {
		b.WriteString(m.renderImage(imagecache.HTTPS(tw.User.ProfileImageURLHTTPS), "avatar"))
		b.WriteString("\n")
		b.WriteString(styles.AccentText.Render(tw.User.Name))
		b.WriteString(" ")
		b.WriteString(styles.MutedText.Render("@" + tw.User.ScreenName))
		b.WriteString("\n")
	}
	if ts := tw.ParsedCreatedAt(); !ts.IsZero() {
		b.WriteString(styles.FaintText.Render(ts.Local().Format(timeLayout)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Width(width).Render(styles.Text.Render(tw.Body())))
	b.WriteString("\n\n")
	b.WriteString(styles.MutedText.Render(fmt.Sprintf("♥ %d  ⟲ %d", tw.FavoriteCount, tw.RetweetCount)))

	for _, media := range tw.MediaList() {
		if media.MediaURLHTTPS == "" {
			continue
		}
		b.WriteString("\n\n")
		b.WriteString(m.renderImage(imagecache.HTTPS(media.MediaURLHTTPS), media.Type))
	}
	return b.String()
}

// renderImage shows the held entry for key: its art, a placeholder, or the
// stored error.
func (m Model) renderImage(key imagecache.Key, label string) string {
	styles := m.theme.Styles()
	h, ok := m.images[key]
	if !ok || key == "" {
		return ""
	}
	r := h.Result()
	switch r.Status {
	case imagecache.Loaded:
		if art, ok := m.textures.get(r.Artifact); ok {
			return art
		}
		return styles.FaintText.Render("[" + label + "]")
	case imagecache.Failed:
		return styles.DangerText.Render(fmt.Sprintf("[%s: %s]", label, r.Err))
	default:
		return styles.FaintText.Render("[loading " + label + "...]")
	}
}

func (m Model) renderFooter() string {
	styles := m.theme.Styles()
	status := ""
	if m.status != "" {
		status = styles.DangerText.Render(m.status)
	}
	return styles.Footer.Render(status) + "\n" + styles.Footer.Render(m.help.ShortHelpView(m.keys.ShortHelp()))
}

// renderHelp renders the full key help.
func (m Model) renderHelp() string {
	styles := m.theme.Styles()
	title := styles.Text.Bold(true).Render("Keyboard Shortcuts")
	body := m.help.FullHelpView(m.keys.FullHelp())
	hint := styles.FaintText.Render("press any key to close")
	content := lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", hint)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
		styles.Focused.Padding(1, 2).Render(content))
}
