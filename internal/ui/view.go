package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/ircline/internal/core"
)

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "starting..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteByte('\n')

	content := m.viewport.View()
	sidebar := m.renderSidebar()
	if sidebar != "" {
		content = lipgloss.JoinHorizontal(lipgloss.Top, content, " ", sidebar)
	}
	b.WriteString(content)
	b.WriteByte('\n')

	b.WriteString(m.renderStatus())
	b.WriteByte('\n')
	b.WriteString(m.input.View())
	return b.String()
}

func (m Model) renderHeader() string {
	srv := m.state.Server
	if srv == nil {
		return m.styles.Header.Render("ircline") + " " + m.styles.Status.Render("not connected")
	}

	var tabs []string
	for _, id := range m.state.Order {
		ch := m.state.Channels[id]
		if ch == nil {
			continue
		}
		label := ch.Name
		if id == m.activeID {
			tabs = append(tabs, m.styles.TabActive.Render(" "+label+" "))
		} else {
			tabs = append(tabs, m.styles.Tab.Render(" "+label+" "))
		}
	}

	status := srv.State.String()
	if srv.AwayMessage != "" {
		status += " (away)"
	}
	left := m.styles.Header.Render(srv.ID) + " " + m.styles.Status.Render(status+" as "+srv.Nickname)
	return left + "  " + strings.Join(tabs, "")
}

func (m Model) renderStatus() string {
	if m.lastErr != "" {
		return m.styles.Error.Render(m.lastErr)
	}
	ch := m.state.Channels[m.activeID]
	if ch == nil {
		return m.styles.Status.Render("tab: switch channel, ctrl+c: quit")
	}
	if ch.Topic != nil && ch.Topic.Text != "" {
		return m.styles.Status.Render(ch.Topic.Text)
	}
	if ch.Kind == core.KindChannel && !ch.IsServerLog() {
		return m.styles.Status.Render(fmt.Sprintf("%s — %d members", ch.Name, len(ch.Users)))
	}
	return m.styles.Status.Render(ch.Name)
}

func (m Model) renderSidebar() string {
	ch := m.state.Channels[m.activeID]
	if ch == nil || ch.IsServerLog() || ch.Kind != core.KindChannel {
		return ""
	}
	var lines []string
	for _, u := range core.SortedMembers(ch) {
		marker := " "
		switch {
		case u.IsOp():
			marker = "@"
		case u.IsVoice():
			marker = "+"
		}
		name := u.Nickname
		if len(name) > sidebarWidth-2 {
			name = name[:sidebarWidth-2]
		}
		lines = append(lines, marker+name)
	}
	return m.styles.Sidebar.Render(strings.Join(lines, "\n"))
}

func (m Model) renderMessages() string {
	ch := m.state.Channels[m.activeID]
	if ch == nil {
		return ""
	}
	lines := make([]string, 0, len(ch.Messages))
	for i := range ch.Messages {
		lines = append(lines, m.renderMessage(&ch.Messages[i]))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderMessage(msg *core.Message) string {
	ts := m.styles.Timestamp.Render(msg.Time.Format("15:04"))

	switch msg.Type {
	case core.MsgMessage:
		nick := m.styles.Nick.Render("<" + msg.Nickname + ">")
		if msg.IsSelf {
			nick = m.styles.SelfNick.Render("<" + msg.Nickname + ">")
		}
		return fmt.Sprintf("%s %s %s", ts, nick, msg.Content)
	case core.MsgAction:
		return fmt.Sprintf("%s %s", ts, m.styles.Action.Render("* "+msg.Nickname+" "+msg.Content))
	case core.MsgNotice:
		return fmt.Sprintf("%s %s", ts, m.styles.Notice.Render("-"+msg.Nickname+"- "+msg.Content))
	case core.MsgMode:
		text := "mode " + msg.Content
		if len(msg.ModeParams) > 0 {
			text += " " + strings.Join(msg.ModeParams, " ")
		}
		if msg.Nickname != "" {
			text += " by " + msg.Nickname
		}
		return fmt.Sprintf("%s %s", ts, m.styles.System.Render(text))
	case core.MsgError:
		return fmt.Sprintf("%s %s", ts, m.styles.Error.Render(msg.Content))
	case core.MsgRaw:
		return fmt.Sprintf("%s %s", ts, m.styles.System.Render("-> "+msg.Content))
	default:
		// join/part/quit/kick/nick/topic/system/info carry a prerendered
		// content line.
		return fmt.Sprintf("%s %s", ts, m.styles.System.Render(msg.Content))
	}
}
