// Package core implements the session state synchronizer: a single-writer
// reducer over one server connection's state, driven by protocol events and
// user commands.
//
// The synchronizer applies optimistic local mutations for part and nick
// without a rollback path. If the server rejects the operation, local and
// server state diverge until the next authoritative snapshot (NAMES reply).
package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ircline/internal/protocol"
)

// Synchronizer owns the SessionState for one server connection. All
// mutation happens on the Run goroutine; the command methods and Snapshot
// round-trip through channels, so there is no locking.
type Synchronizer struct {
	conn protocol.Client
	log  *zerolog.Logger

	commands  chan Command
	snapshots chan chan SessionState
	notify    chan struct{}
	signals   chan Signal

	state *SessionState

	now   func() time.Time
	newID func() string
}

// NewSynchronizer builds a synchronizer over the given protocol client.
func NewSynchronizer(conn protocol.Client, logger *zerolog.Logger) *Synchronizer {
	return &Synchronizer{
		conn:      conn,
		log:       logger,
		commands:  make(chan Command, 8),
		snapshots: make(chan chan SessionState),
		notify:    make(chan struct{}, 1),
		signals:   make(chan Signal, 8),
		state:     newSessionState(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Run processes commands and protocol events one at a time until ctx is
// cancelled. Exactly one Run goroutine may exist per synchronizer.
func (s *Synchronizer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-s.commands:
			res := s.handleCommand(cmd)
			if cmd.reply != nil {
				cmd.reply <- res
			}
			s.notifySubscribers()
		case ev, ok := <-s.conn.Events():
			if !ok {
				return
			}
			s.reduce(ev)
			s.notifySubscribers()
		case out := <-s.snapshots:
			out <- s.state.copy()
		}
	}
}

// Notify returns a channel that receives (coalesced) after every committed
// mutation.
func (s *Synchronizer) Notify() <-chan struct{} {
	return s.notify
}

// Signals returns the out-of-band signal stream for the presentation layer.
func (s *Synchronizer) Signals() <-chan Signal {
	return s.signals
}

// Snapshot returns a deep copy of the current session state.
func (s *Synchronizer) Snapshot() SessionState {
	out := make(chan SessionState, 1)
	s.snapshots <- out
	return <-out
}

func (s *Synchronizer) notifySubscribers() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Synchronizer) emitSignal(sig Signal) {
	select {
	case s.signals <- sig:
	default:
		s.log.Warn().Str("channel_id", sig.ChannelID).Msg("signal dropped, slow consumer")
	}
}

func (s *Synchronizer) do(cmd Command) CommandResult {
	cmd.reply = make(chan CommandResult, 1)
	s.commands <- cmd
	return <-cmd.reply
}

// Connect establishes a fresh connection. Fails with ErrAlreadyConnecting
// while a connection attempt or live connection exists.
func (s *Synchronizer) Connect(details ConnectDetails) error {
	return s.do(Command{Kind: CommandConnect, Connect: details}).Err
}

// Disconnect tears down the connection, synthesizing the side effects
// locally if the transport never fully opened.
func (s *Synchronizer) Disconnect(reason string) error {
	return s.do(Command{Kind: CommandDisconnect, Reason: reason}).Err
}

// JoinChannel joins the named channel and returns the channel ID to focus.
// On ErrAlreadyJoined the existing ID is still returned.
func (s *Synchronizer) JoinChannel(name string) (string, error) {
	res := s.do(Command{Kind: CommandJoin, Name: name})
	return res.ChannelID, res.Err
}

// PartChannel leaves the channel and removes it from state immediately,
// without waiting for server confirmation.
func (s *Synchronizer) PartChannel(id, reason string) error {
	return s.do(Command{Kind: CommandPart, ChannelID: id, Reason: reason}).Err
}

// SendMessage parses the input text for local slash commands and forwards
// the resulting protocol action. The returned channel ID names the channel
// the input resolved to, which may differ from the issuing one (e.g. /join).
func (s *Synchronizer) SendMessage(channelID, text string) (string, error) {
	res := s.do(Command{Kind: CommandSend, ChannelID: channelID, Text: text})
	return res.ChannelID, res.Err
}

// ChangeNick requests a nickname change. The local nickname is updated
// optimistically and again on server confirmation.
func (s *Synchronizer) ChangeNick(newNick string) error {
	return s.do(Command{Kind: CommandNick, NewNick: newNick}).Err
}

// RequestUserListRefresh asks the server for a fresh member snapshot of the
// channel. Advisory; useful when a channel's membership looks stale.
func (s *Synchronizer) RequestUserListRefresh(channelID string) error {
	return s.do(Command{Kind: CommandNamesRefresh, ChannelID: channelID}).Err
}

// ListAvailableChannels starts a channel discovery cycle.
func (s *Synchronizer) ListAvailableChannels() error {
	return s.do(Command{Kind: CommandList}).Err
}

func (s *Synchronizer) handleCommand(cmd Command) CommandResult {
	switch cmd.Kind {
	case CommandConnect:
		return CommandResult{Err: s.doConnect(cmd.Connect)}
	case CommandDisconnect:
		return CommandResult{Err: s.doDisconnect(cmd.Reason)}
	case CommandJoin:
		return s.doJoin(cmd.Name)
	case CommandPart:
		return CommandResult{Err: s.doPart(cmd.ChannelID, cmd.Reason)}
	case CommandSend:
		return s.doSend(cmd.ChannelID, cmd.Text)
	case CommandNick:
		return CommandResult{Err: s.doNick(cmd.NewNick)}
	case CommandNamesRefresh:
		return CommandResult{Err: s.doNamesRefresh(cmd.ChannelID)}
	case CommandList:
		return CommandResult{Err: s.doList()}
	default:
		return CommandResult{Err: sessionError(ErrCodeCommandError, "unknown command")}
	}
}

func (s *Synchronizer) doConnect(details ConnectDetails) error {
	if srv := s.state.Server; srv != nil && srv.State == Connecting {
		return sessionError(ErrCodeAlreadyConnecting, "connection attempt already in progress")
	}
	if srv := s.state.Server; srv != nil && srv.State == Connected {
		return sessionError(ErrCodeAlreadyConnecting, "already connected, disconnect first")
	}

	serverID := ServerID(details.Host, details.Port)
	s.state.clearChannels()
	s.state.Available = nil
	s.state.listing = false
	s.state.Server = &ServerSession{
		ID:       serverID,
		Host:     details.Host,
		Port:     details.Port,
		Nickname: details.Nickname,
		State:    Connecting,
	}

	logChan := &Channel{
		ID:       serverID,
		ServerID: serverID,
		Name:     serverID,
		Kind:     KindChannel,
		Users:    make(map[string]*User),
	}
	s.state.addChannel(logChan)
	s.appendMessage(logChan, Message{
		Type:    MsgSystem,
		Content: fmt.Sprintf("attempting to connect to %s...", serverID),
	})

	s.log.Info().Str("server", serverID).Str("nick", details.Nickname).Msg("connecting")
	s.conn.Connect(protocol.ConnectConfig{
		Host:     details.Host,
		Port:     details.Port,
		TLS:      details.TLS,
		Nickname: details.Nickname,
		Username: details.Username,
		RealName: details.RealName,
		Password: details.Password,
	})
	return nil
}

func (s *Synchronizer) doDisconnect(reason string) error {
	srv := s.state.Server
	if srv == nil || srv.State == Disconnected {
		return sessionError(ErrCodeNotConnected, "not connected")
	}
	wasConnected := srv.State == Connected
	s.conn.Disconnect(reason)
	if !wasConnected {
		// The transport never fully opened, so it may never emit a close
		// event. Synthesize the side effects locally.
		s.reduceClosed(reason)
	}
	return nil
}

func (s *Synchronizer) doJoin(name string) CommandResult {
	srv := s.state.Server
	if srv == nil || srv.State != Connected {
		return CommandResult{Err: sessionError(ErrCodeNotConnected, "not connected")}
	}
	name = normalizeChannelName(name)
	id := ChannelID(srv.ID, name)
	if existing := s.state.channel(id); existing != nil {
		err := &SessionError{
			Code:      ErrCodeAlreadyJoined,
			Message:   fmt.Sprintf("already joined %s", existing.Name),
			ChannelID: id,
		}
		return CommandResult{ChannelID: id, Err: err}
	}

	ch := &Channel{
		ID:       id,
		ServerID: srv.ID,
		Name:     name,
		Kind:     KindChannel,
		Users: map[string]*User{
			casefold(srv.Nickname): {Nickname: srv.Nickname},
		},
	}
	s.state.addChannel(ch)
	s.appendMessage(ch, Message{
		Type:    MsgSystem,
		Content: fmt.Sprintf("joining %s...", name),
	})
	s.conn.Join(name)
	return CommandResult{ChannelID: id}
}

func (s *Synchronizer) doPart(id, reason string) error {
	ch := s.state.channel(id)
	if ch == nil {
		return sessionError(ErrCodeNoSuchChannel, "no such channel")
	}
	if ch.IsServerLog() {
		return sessionError(ErrCodeCommandError, "cannot part the server log")
	}
	if ch.Kind == KindChannel {
		if srv := s.state.Server; srv != nil && srv.State == Connected {
			s.conn.Part(ch.Name, reason)
		}
	}
	// Optimistic removal: the channel is gone locally before (and whether
	// or not) the server confirms.
	s.state.removeChannel(id)
	return nil
}

func (s *Synchronizer) doNick(newNick string) error {
	srv := s.state.Server
	if srv == nil || srv.State != Connected {
		return sessionError(ErrCodeNotConnected, "not connected")
	}
	if newNick == "" || newNick == srv.Nickname {
		return nil
	}
	s.conn.Nick(newNick)
	// Optimistic: the authoritative update arrives with the NICK event.
	srv.Nickname = newNick
	return nil
}

func (s *Synchronizer) doNamesRefresh(channelID string) error {
	ch := s.state.channel(channelID)
	if ch == nil {
		return sessionError(ErrCodeNoSuchChannel, "no such channel")
	}
	if ch.Kind != KindChannel || ch.IsServerLog() {
		return nil
	}
	if srv := s.state.Server; srv == nil || srv.State != Connected {
		return sessionError(ErrCodeNotConnected, "not connected")
	}
	s.conn.Names(ch.Name)
	return nil
}

func (s *Synchronizer) doList() error {
	if srv := s.state.Server; srv == nil || srv.State != Connected {
		return sessionError(ErrCodeNotConnected, "not connected")
	}
	s.conn.List()
	return nil
}

func (s *Synchronizer) doSend(channelID, text string) CommandResult {
	srv := s.state.Server
	if srv == nil || srv.State != Connected {
		return CommandResult{Err: sessionError(ErrCodeNotConnected, "not connected")}
	}
	ch := s.state.channel(channelID)
	if ch == nil {
		return CommandResult{Err: sessionError(ErrCodeNoSuchChannel, "no such channel")}
	}

	in, err := parseInput(text)
	if err != nil {
		return CommandResult{ChannelID: channelID, Err: err}
	}

	switch in.Kind {
	case inputMessage, inputAction:
		if ch.IsServerLog() {
			return CommandResult{Err: sessionError(ErrCodeCommandError, "cannot send messages to the server log")}
		}
		msgType := MsgMessage
		if in.Kind == inputAction {
			s.conn.Action(ch.Name, in.Text)
			msgType = MsgAction
		} else {
			s.conn.Privmsg(ch.Name, in.Text)
		}
		// The server does not echo our own PRIVMSG; append optimistically.
		s.appendMessage(ch, Message{
			Type:     msgType,
			Nickname: srv.Nickname,
			Target:   ch.Name,
			Content:  in.Text,
			IsSelf:   true,
		})
		return CommandResult{ChannelID: channelID}
	case inputNotice:
		s.conn.Notice(in.Target, in.Text)
		return CommandResult{ChannelID: channelID}
	case inputQuery:
		s.appendMessage(ch, Message{
			Type:    MsgInfo,
			Content: fmt.Sprintf("query %s: no message sent", in.Target),
		})
		return CommandResult{ChannelID: channelID}
	case inputJoin:
		return s.doJoin(in.Target)
	case inputPart:
		target := channelID
		if in.Target != "" {
			if named := s.state.channelByName(normalizeChannelName(in.Target)); named != nil {
				target = named.ID
			}
		}
		if err := s.doPart(target, in.Text); err != nil {
			return CommandResult{ChannelID: channelID, Err: err}
		}
		if target == channelID {
			s.emitSignal(Signal{Kind: SignalViewInvalidated, ChannelID: target})
		}
		return CommandResult{ChannelID: srv.ID}
	case inputNick:
		return CommandResult{ChannelID: channelID, Err: s.doNick(in.Target)}
	case inputTopic:
		if ch.IsServerLog() || ch.Kind != KindChannel {
			return CommandResult{Err: sessionError(ErrCodeCommandError, "/topic requires a channel")}
		}
		s.conn.Raw(fmt.Sprintf("TOPIC %s :%s", ch.Name, in.Text))
		return CommandResult{ChannelID: channelID}
	case inputList:
		return CommandResult{ChannelID: channelID, Err: s.doList()}
	case inputRaw:
		s.conn.Raw(in.Text)
		if logChan := s.state.channel(srv.ID); logChan != nil {
			s.appendMessage(logChan, Message{
				Type:    MsgRaw,
				Content: in.Text,
				RawLine: in.Text,
				IsSelf:  true,
			})
		}
		return CommandResult{ChannelID: channelID}
	case inputQuit:
		return CommandResult{ChannelID: channelID, Err: s.doDisconnect(in.Text)}
	default:
		return CommandResult{Err: sessionError(ErrCodeCommandError, "unhandled input: "+text)}
	}
}

// appendMessage stamps and appends a message to the channel log.
func (s *Synchronizer) appendMessage(ch *Channel, msg Message) {
	msg.ID = s.newID()
	msg.Time = s.now()
	msg.ChannelID = ch.ID
	ch.Messages = append(ch.Messages, msg)
}

// normalizeChannelName ensures the name carries a channel sigil.
func normalizeChannelName(name string) string {
	if name == "" {
		return name
	}
	if strings.ContainsAny(name[:1], "#&") {
		return name
	}
	return "#" + name
}

func (s *Synchronizer) isMe(nick string) bool {
	srv := s.state.Server
	return srv != nil && casefold(nick) == casefold(srv.Nickname)
}
