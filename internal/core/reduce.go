package core

import (
	"fmt"
	"strings"

	"github.com/vovakirdan/ircline/internal/protocol"
)

// reduce applies one protocol event to the session state. Events that
// reference channels or users no longer known locally are no-ops, never
// errors: the event stream and local optimistic mutations race by design.
func (s *Synchronizer) reduce(ev protocol.Event) {
	if s.state.Server == nil {
		return
	}

	switch ev.Kind {
	case protocol.EventRegistered:
		s.reduceRegistered()
	case protocol.EventClosed:
		s.reduceClosed(ev.Reason)
	case protocol.EventConnError:
		s.reduceConnError(ev)
	case protocol.EventProtoError:
		s.reduceProtoError(ev)
	case protocol.EventMessage:
		s.reduceMessage(ev)
	case protocol.EventJoined:
		s.reduceJoined(ev)
	case protocol.EventParted:
		s.reduceParted(ev)
	case protocol.EventQuit:
		s.reduceQuit(ev)
	case protocol.EventNickChanged:
		s.reduceNickChanged(ev)
	case protocol.EventTopicChanged:
		s.reduceTopicChanged(ev)
	case protocol.EventNamesSnapshot:
		s.reduceNamesSnapshot(ev)
	case protocol.EventListStart:
		s.state.Available = nil
		s.state.listing = true
	case protocol.EventListItem:
		s.reduceListItem(ev)
	case protocol.EventListEnd:
		s.state.listing = false
		sortAvailable(s.state.Available)
	case protocol.EventMode:
		s.reduceMode(ev)
	case protocol.EventKicked:
		s.reduceKicked(ev)
	case protocol.EventAway:
		if ev.User.Nick == "" || s.isMe(ev.User.Nick) {
			s.state.Server.AwayMessage = ev.Message
		}
	}
}

func (s *Synchronizer) serverLog() *Channel {
	return s.state.channel(s.state.Server.ID)
}

func (s *Synchronizer) appendToServerLog(msg Message) {
	if logChan := s.serverLog(); logChan != nil {
		s.appendMessage(logChan, msg)
	}
}

func (s *Synchronizer) reduceRegistered() {
	srv := s.state.Server
	srv.State = Connected
	s.appendToServerLog(Message{
		Type:    MsgSystem,
		Content: fmt.Sprintf("connected to %s", srv.ID),
	})
	s.log.Info().Str("server", srv.ID).Msg("registered")
	// Kick off channel discovery once per successful registration.
	s.conn.List()
}

// reduceClosed resets the session to Disconnected. Every channel except
// the server log is dropped; the log survives so the close reason has
// somewhere to land.
func (s *Synchronizer) reduceClosed(reason string) {
	srv := s.state.Server
	if srv.State == Disconnected {
		return
	}
	srv.State = Disconnected
	srv.AwayMessage = ""
	for _, id := range append([]string(nil), s.state.Order...) {
		if id != srv.ID {
			s.state.removeChannel(id)
		}
	}
	s.state.Available = nil
	s.state.listing = false
	if reason == "" {
		reason = "connection closed"
	}
	s.appendToServerLog(Message{
		Type:    MsgSystem,
		Content: fmt.Sprintf("disconnected: %s", reason),
	})
	s.log.Info().Str("server", srv.ID).Str("reason", reason).Msg("disconnected")
}

func (s *Synchronizer) reduceConnError(ev protocol.Event) {
	kind := "connection error"
	switch ev.ErrKind {
	case protocol.ConnErrorLookup:
		kind = "host lookup failed"
	case protocol.ConnErrorSocket:
		kind = "socket error"
	case protocol.ConnErrorRefused:
		kind = "connection refused"
	}
	s.appendToServerLog(Message{
		Type:    MsgError,
		Content: fmt.Sprintf("%s: %s", kind, ev.Message),
	})
	// Connection-class errors are fatal for the session.
	s.reduceClosed(ev.Message)
}

func (s *Synchronizer) reduceProtoError(ev protocol.Event) {
	content := ev.Message
	if ev.Code != "" {
		content = fmt.Sprintf("[%s] %s", ev.Code, ev.Message)
	}
	s.appendToServerLog(Message{Type: MsgError, Content: content})
}

// reduceMessage appends an inbound privmsg/notice/action. A private
// message with no matching channel creates one on the fly with both
// parties as members.
func (s *Synchronizer) reduceMessage(ev protocol.Event) {
	var msgType MessageType
	switch ev.MsgKind {
	case protocol.MessageNotice:
		msgType = MsgNotice
	case protocol.MessageAction:
		msgType = MsgAction
	default:
		msgType = MsgMessage
	}

	var ch *Channel
	if s.isMe(ev.Target) && ev.From.Nick != "" && !s.isMe(ev.From.Nick) {
		// Addressed to us directly: the conversation is keyed by the other
		// party's nick.
		ch = s.state.channelByName(ev.From.Nick)
		if ch == nil {
			if ev.MsgKind == protocol.MessageNotice {
				// Server and service notices do not open conversations.
				s.appendToServerLog(Message{
					Type:     msgType,
					Nickname: ev.From.Nick,
					Target:   ev.Target,
					Content:  ev.Text,
				})
				return
			}
			ch = s.openPrivateChannel(ev.From)
		}
	} else {
		ch = s.state.channelByName(ev.Target)
		if ch == nil && !strings.ContainsAny(ev.Target, "#&") {
			s.appendToServerLog(Message{
				Type:     msgType,
				Nickname: ev.From.Nick,
				Target:   ev.Target,
				Content:  ev.Text,
			})
			return
		}
	}
	if ch == nil {
		return
	}
	s.appendMessage(ch, Message{
		Type:     msgType,
		Nickname: ev.From.Nick,
		Target:   ev.Target,
		Content:  ev.Text,
		IsSelf:   s.isMe(ev.From.Nick),
	})
}

// openPrivateChannel creates the two-member channel for a private
// conversation with the given party.
func (s *Synchronizer) openPrivateChannel(other protocol.UserInfo) *Channel {
	srv := s.state.Server
	ch := &Channel{
		ID:       ChannelID(srv.ID, other.Nick),
		ServerID: srv.ID,
		Name:     other.Nick,
		Kind:     KindPrivateMessage,
		Users: map[string]*User{
			casefold(srv.Nickname): {Nickname: srv.Nickname},
			casefold(other.Nick): {
				Nickname: other.Nick,
				Username: other.Username,
				Hostname: other.Host,
			},
		},
	}
	s.state.addChannel(ch)
	return ch
}

func (s *Synchronizer) reduceJoined(ev protocol.Event) {
	ch := s.state.channelByName(ev.Channel)
	if ch == nil {
		if !s.isMe(ev.User.Nick) {
			return
		}
		// Server-initiated join for a channel we have no placeholder for.
		srv := s.state.Server
		ch = &Channel{
			ID:       ChannelID(srv.ID, ev.Channel),
			ServerID: srv.ID,
			Name:     ev.Channel,
			Kind:     KindChannel,
			Users:    make(map[string]*User),
		}
		s.state.addChannel(ch)
	}

	key := casefold(ev.User.Nick)
	if _, member := ch.Users[key]; !member {
		ch.Users[key] = &User{
			Nickname: ev.User.Nick,
			Username: ev.User.Username,
			Hostname: ev.User.Host,
		}
	}
	// The join message is appended even when the member was already known,
	// preserving the server-visible join order.
	s.appendMessage(ch, Message{
		Type:     MsgJoin,
		Nickname: ev.User.Nick,
		Content:  fmt.Sprintf("%s joined %s", ev.User.Nick, ch.Name),
	})

	if s.isMe(ev.User.Nick) {
		s.conn.Names(ch.Name)
	}
}

func (s *Synchronizer) reduceParted(ev protocol.Event) {
	ch := s.state.channelByName(ev.Channel)
	if ch == nil {
		return
	}
	delete(ch.Users, casefold(ev.User.Nick))
	content := fmt.Sprintf("%s left %s", ev.User.Nick, ch.Name)
	if ev.Reason != "" {
		content += " (" + ev.Reason + ")"
	}
	s.appendMessage(ch, Message{
		Type:     MsgPart,
		Nickname: ev.User.Nick,
		Content:  content,
	})
}

// reduceQuit removes the user from every affected channel, appending one
// quit message per channel. When the transport cannot name the affected
// channels, membership decides.
func (s *Synchronizer) reduceQuit(ev protocol.Event) {
	key := casefold(ev.User.Nick)
	content := fmt.Sprintf("%s quit", ev.User.Nick)
	if ev.Reason != "" {
		content += " (" + ev.Reason + ")"
	}

	affected := ev.Channels
	if affected == nil {
		for _, id := range s.state.Order {
			ch := s.state.Channels[id]
			if _, member := ch.Users[key]; member && !ch.IsServerLog() {
				affected = append(affected, ch.Name)
			}
		}
	}
	for _, name := range affected {
		ch := s.state.channelByName(name)
		if ch == nil {
			continue
		}
		delete(ch.Users, key)
		s.appendMessage(ch, Message{
			Type:     MsgQuit,
			Nickname: ev.User.Nick,
			Content:  content,
		})
	}
}

// reduceNickChanged rewrites the member in every channel where the old
// nick is known (or which the event names as affected), re-keying by the
// casefolded new nick. Messages already appended keep the old literal.
func (s *Synchronizer) reduceNickChanged(ev protocol.Event) {
	srv := s.state.Server
	oldKey := casefold(ev.OldNick)
	newKey := casefold(ev.NewNick)

	affected := make(map[string]bool)
	for _, name := range ev.Channels {
		if ch := s.state.channelByName(name); ch != nil {
			affected[ch.ID] = true
		}
	}
	for _, id := range s.state.Order {
		if _, member := s.state.Channels[id].Users[oldKey]; member {
			affected[id] = true
		}
	}

	for _, id := range s.state.Order {
		if !affected[id] {
			continue
		}
		ch := s.state.Channels[id]
		if u, ok := ch.Users[oldKey]; ok {
			u.Nickname = ev.NewNick
			delete(ch.Users, oldKey)
			ch.Users[newKey] = u
		}
		s.appendMessage(ch, Message{
			Type:        MsgNick,
			Nickname:    ev.NewNick,
			OldNickname: ev.OldNick,
			Content:     fmt.Sprintf("%s is now known as %s", ev.OldNick, ev.NewNick),
		})
	}

	if oldKey == casefold(srv.Nickname) || newKey == casefold(srv.Nickname) {
		srv.Nickname = ev.NewNick
	}
}

func (s *Synchronizer) reduceTopicChanged(ev protocol.Event) {
	ch := s.state.channelByName(ev.Channel)
	if ch == nil {
		return
	}
	ch.Topic = &Topic{
		Text:  ev.Topic,
		SetBy: ev.Setter,
		SetAt: s.now(),
	}
	content := fmt.Sprintf("topic: %s", ev.Topic)
	if ev.Setter != "" {
		content = fmt.Sprintf("%s set the topic: %s", ev.Setter, ev.Topic)
	}
	s.appendMessage(ch, Message{
		Type:     MsgTopic,
		Nickname: ev.Setter,
		Content:  content,
	})
}

// reduceNamesSnapshot replaces the member map wholesale. This is the
// authoritative resync point, not a merge.
func (s *Synchronizer) reduceNamesSnapshot(ev protocol.Event) {
	ch := s.state.channelByName(ev.Channel)
	if ch == nil {
		return
	}
	users := make(map[string]*User, len(ev.Users))
	for _, ui := range ev.Users {
		users[casefold(ui.Nick)] = &User{
			Nickname: ui.Nick,
			Username: ui.Username,
			Hostname: ui.Host,
			Modes:    ui.Prefixes,
		}
	}
	ch.Users = users
}

func (s *Synchronizer) reduceListItem(ev protocol.Event) {
	if !s.state.listing {
		return
	}
	srv := s.state.Server
	s.state.Available = append(s.state.Available, AvailableChannelInfo{
		ID:           ChannelID(srv.ID, ev.ListName),
		ServerID:     srv.ID,
		Name:         ev.ListName,
		Topic:        ev.ListTopic,
		Modes:        ev.ListModes,
		UserCount:    ev.UserCount,
		HasUserCount: ev.HasUserCount,
	})
}

func (s *Synchronizer) reduceMode(ev protocol.Event) {
	msg := Message{
		Type:       MsgMode,
		Nickname:   ev.ModeSetter,
		Target:     ev.ModeTarget,
		Content:    ev.Modes,
		ModeParams: ev.ModeParams,
	}
	ch := s.state.channelByName(ev.ModeTarget)
	if ch == nil || ch.IsServerLog() {
		// Usually a user mode on ourselves.
		s.appendToServerLog(msg)
		return
	}
	s.appendMessage(ch, msg)
	// Membership prefixes are not re-derived from the delta; an
	// authoritative snapshot is requested instead.
	if strings.ContainsAny(ev.Modes, "qaohv") && len(ev.ModeParams) > 0 {
		s.conn.Names(ch.Name)
	}
}

func (s *Synchronizer) reduceKicked(ev protocol.Event) {
	ch := s.state.channelByName(ev.Channel)
	if ch == nil {
		return
	}
	delete(ch.Users, casefold(ev.Kicked))
	content := fmt.Sprintf("%s kicked %s from %s", ev.By, ev.Kicked, ch.Name)
	if ev.Reason != "" {
		content += " (" + ev.Reason + ")"
	}
	s.appendMessage(ch, Message{
		Type:       MsgKick,
		Nickname:   ev.By,
		Kicked:     ev.Kicked,
		KickReason: ev.Reason,
		Content:    content,
	})
	if s.isMe(ev.Kicked) {
		s.emitSignal(Signal{Kind: SignalViewInvalidated, ChannelID: ch.ID})
	}
}
