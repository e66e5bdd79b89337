// Package ircevent adapts the go-ircevent client library to the protocol
// boundary consumed by the session core. The library owns the socket,
// framing, TLS and line parsing; this package translates its callback
// surface into the typed event union and the command methods into library
// calls.
package ircevent

import (
	"crypto/tls"
	"errors"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	irc "github.com/thoj/go-ircevent"
	"golang.org/x/time/rate"

	"github.com/vovakirdan/ircline/internal/protocol"
)

// Outbound commands are throttled to stay under common server flood
// limits: sustained two lines per second with a small burst.
const (
	sendRate  = rate.Limit(2)
	sendBurst = 5
)

// Adapter implements protocol.Client over one go-ircevent connection at a
// time. A fresh underlying connection is created per Connect call. Each
// attempt carries a generation token; goroutines left over from a
// superseded attempt (a slow dial, a late error) check it and discard
// their results instead of disturbing the current connection.
type Adapter struct {
	log    *zerolog.Logger
	events chan protocol.Event

	mu        sync.Mutex
	gen       uint64 // current connection attempt
	conn      *irc.Connection
	connected bool // registration-capable socket established
	closed    bool // terminal event emitted for the current attempt
	sendq     chan func(*irc.Connection)
	done      chan struct{} // closed when the current attempt ends
}

// New builds an adapter. The events channel stays valid across
// reconnections.
func New(logger *zerolog.Logger) *Adapter {
	return &Adapter{
		log:    logger,
		events: make(chan protocol.Event, 64),
	}
}

// Events implements protocol.Client.
func (a *Adapter) Events() <-chan protocol.Event {
	return a.events
}

func (a *Adapter) emit(ev protocol.Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	a.events <- ev
}

// emitFrom delivers an event only if it belongs to the current attempt.
func (a *Adapter) emitFrom(gen uint64, ev protocol.Event) {
	a.mu.Lock()
	stale := gen != a.gen
	a.mu.Unlock()
	if stale {
		return
	}
	a.emit(ev)
}

// emitTerminal delivers a Closed or ConnError event exactly once per
// connection attempt. Terminal events from superseded attempts are
// discarded.
func (a *Adapter) emitTerminal(gen uint64, ev protocol.Event) {
	a.mu.Lock()
	if gen != a.gen || a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.sendq = nil
	if a.done != nil {
		close(a.done)
		a.done = nil
	}
	a.mu.Unlock()
	a.emit(ev)
}

// Connect implements protocol.Client. It returns immediately; dial
// progress and failure arrive as events.
func (a *Adapter) Connect(cfg protocol.ConnectConfig) {
	username := cfg.Username
	if username == "" {
		username = cfg.Nickname
	}

	conn := irc.IRC(cfg.Nickname, username)
	conn.RealName = cfg.RealName
	conn.Password = cfg.Password
	conn.QuitMessage = "ircline"
	conn.Log = newStdLogger(a.log)
	if cfg.TLS {
		conn.UseTLS = true
		conn.TLSConfig = &tls.Config{ServerName: cfg.Host}
	}
	sendq := make(chan func(*irc.Connection), 64)
	done := make(chan struct{})
	a.mu.Lock()
	a.gen++
	gen := a.gen
	a.conn = conn
	a.connected = false
	a.closed = false
	a.sendq = sendq
	a.done = done
	a.mu.Unlock()

	a.registerCallbacks(conn, cfg, gen)

	go a.sendLoop(conn, sendq, done)

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	go func() {
		if err := conn.Connect(addr); err != nil {
			a.log.Warn().Err(err).Str("addr", addr).Msg("dial failed")
			a.emitTerminal(gen, connErrorEvent(err))
			return
		}
		a.mu.Lock()
		stale := gen != a.gen || a.closed
		if !stale {
			a.connected = true
		}
		a.mu.Unlock()
		if stale {
			// Disconnect or a newer Connect raced the dial; tear the late
			// socket down without touching the current attempt.
			conn.Quit()
			conn.Disconnect()
			return
		}

		go conn.Loop()

		err := <-conn.ErrorChan()
		if err != nil && !errors.Is(err, irc.ErrDisconnected) {
			a.log.Warn().Err(err).Msg("connection lost")
			a.emitTerminal(gen, protocol.Event{
				Kind:   protocol.EventClosed,
				Reason: err.Error(),
			})
		} else {
			a.emitTerminal(gen, protocol.Event{Kind: protocol.EventClosed, Reason: "connection closed"})
		}
		conn.Quit()
	}()
}

// Disconnect implements protocol.Client. For a connection that never
// opened no Closed event is emitted, matching the protocol contract.
func (a *Adapter) Disconnect(reason string) {
	a.mu.Lock()
	gen := a.gen
	conn := a.conn
	connected := a.connected
	if !connected && !a.closed {
		// Abandon the dial silently; the core synthesizes the close.
		a.closed = true
		a.sendq = nil
		if a.done != nil {
			close(a.done)
			a.done = nil
		}
	}
	a.mu.Unlock()
	if conn == nil || !connected {
		return
	}
	if reason != "" {
		conn.QuitMessage = reason
	}
	conn.Quit()
	a.emitTerminal(gen, protocol.Event{Kind: protocol.EventClosed, Reason: reasonOr(reason, "disconnected")})
	conn.Disconnect()
}

// sendLoop serializes and throttles outbound commands until the attempt
// ends. The queue channel is never closed; the done channel stops the
// loop, so a late send can at worst land in an orphaned buffer.
func (a *Adapter) sendLoop(conn *irc.Connection, sendq <-chan func(*irc.Connection), done <-chan struct{}) {
	limiter := rate.NewLimiter(sendRate, sendBurst)
	for {
		select {
		case <-done:
			return
		case op := <-sendq:
			r := limiter.Reserve()
			if d := r.Delay(); d > 0 {
				time.Sleep(d)
			}
			op(conn)
		}
	}
}

func (a *Adapter) send(op func(*irc.Connection)) {
	a.mu.Lock()
	sendq := a.sendq
	a.mu.Unlock()
	if sendq == nil {
		return
	}
	select {
	case sendq <- op:
	default:
		a.log.Warn().Msg("outbound queue full, dropping command")
	}
}

func (a *Adapter) Join(channel string) {
	a.send(func(c *irc.Connection) { c.Join(channel) })
}

func (a *Adapter) Part(channel, reason string) {
	if reason == "" {
		a.send(func(c *irc.Connection) { c.Part(channel) })
		return
	}
	a.send(func(c *irc.Connection) { c.SendRawf("PART %s :%s", channel, reason) })
}

func (a *Adapter) Privmsg(target, text string) {
	a.send(func(c *irc.Connection) { c.Privmsg(target, text) })
}

func (a *Adapter) Action(target, text string) {
	a.send(func(c *irc.Connection) { c.Action(target, text) })
}

func (a *Adapter) Notice(target, text string) {
	a.send(func(c *irc.Connection) { c.Notice(target, text) })
}

func (a *Adapter) Nick(newNick string) {
	a.send(func(c *irc.Connection) { c.Nick(newNick) })
}

func (a *Adapter) List() {
	a.send(func(c *irc.Connection) { c.SendRaw("LIST") })
}

func (a *Adapter) Names(channel string) {
	a.send(func(c *irc.Connection) { c.SendRawf("NAMES %s", channel) })
}

func (a *Adapter) Raw(line string) {
	a.send(func(c *irc.Connection) { c.SendRaw(line) })
}

func reasonOr(reason, fallback string) string {
	if reason == "" {
		return fallback
	}
	return reason
}

func connErrorEvent(err error) protocol.Event {
	ev := protocol.Event{
		Kind:    protocol.EventConnError,
		ErrKind: protocol.ConnErrorGeneric,
		Message: err.Error(),
	}
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &dnsErr):
		ev.ErrKind = protocol.ConnErrorLookup
	case errors.Is(err, syscall.ECONNREFUSED):
		ev.ErrKind = protocol.ConnErrorRefused
	default:
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			ev.ErrKind = protocol.ConnErrorSocket
		}
	}
	return ev
}

func userInfo(e *irc.Event) protocol.UserInfo {
	return protocol.UserInfo{
		Nick:     e.Nick,
		Username: e.User,
		Host:     e.Host,
	}
}

// prefixChars are membership prefixes in common PREFIX orderings.
const prefixChars = "~&@%+"

func splitPrefixedNick(raw string) (prefixes, nick string) {
	i := 0
	for i < len(raw) && strings.IndexByte(prefixChars, raw[i]) >= 0 {
		i++
	}
	return raw[:i], raw[i:]
}

func (a *Adapter) registerCallbacks(conn *irc.Connection, cfg protocol.ConnectConfig, gen uint64) {
	conn.AddCallback("001", func(e *irc.Event) {
		a.emitFrom(gen, protocol.Event{Kind: protocol.EventRegistered})
		// The server may have assigned a different nick (e.g. collision
		// fallback); surface it as a rename of our own nick.
		if len(e.Arguments) > 0 && e.Arguments[0] != cfg.Nickname {
			a.emitFrom(gen, protocol.Event{
				Kind:    protocol.EventNickChanged,
				OldNick: cfg.Nickname,
				NewNick: e.Arguments[0],
			})
		}
	})

	conn.AddCallback("PRIVMSG", func(e *irc.Event) {
		a.emitFrom(gen, protocol.Event{
			Kind:    protocol.EventMessage,
			MsgKind: protocol.MessagePrivmsg,
			From:    userInfo(e),
			Target:  e.Arguments[0],
			Text:    e.Message(),
		})
	})
	conn.AddCallback("NOTICE", func(e *irc.Event) {
		a.emitFrom(gen, protocol.Event{
			Kind:    protocol.EventMessage,
			MsgKind: protocol.MessageNotice,
			From:    userInfo(e),
			Target:  e.Arguments[0],
			Text:    e.Message(),
		})
	})
	conn.AddCallback("CTCP_ACTION", func(e *irc.Event) {
		a.emitFrom(gen, protocol.Event{
			Kind:    protocol.EventMessage,
			MsgKind: protocol.MessageAction,
			From:    userInfo(e),
			Target:  e.Arguments[0],
			Text:    e.Message(),
		})
	})

	conn.AddCallback("JOIN", func(e *irc.Event) {
		a.emitFrom(gen, protocol.Event{
			Kind:    protocol.EventJoined,
			User:    userInfo(e),
			Channel: e.Arguments[0],
		})
	})
	conn.AddCallback("PART", func(e *irc.Event) {
		reason := ""
		if len(e.Arguments) > 1 {
			reason = e.Message()
		}
		a.emitFrom(gen, protocol.Event{
			Kind:    protocol.EventParted,
			User:    userInfo(e),
			Channel: e.Arguments[0],
			Reason:  reason,
		})
	})
	conn.AddCallback("QUIT", func(e *irc.Event) {
		// The wire does not say which channels are affected; the core
		// derives them from membership.
		a.emitFrom(gen, protocol.Event{
			Kind:   protocol.EventQuit,
			User:   userInfo(e),
			Reason: e.Message(),
		})
	})
	conn.AddCallback("NICK", func(e *irc.Event) {
		a.emitFrom(gen, protocol.Event{
			Kind:    protocol.EventNickChanged,
			OldNick: e.Nick,
			NewNick: e.Arguments[0],
		})
	})
	conn.AddCallback("KICK", func(e *irc.Event) {
		reason := ""
		if len(e.Arguments) > 2 {
			reason = e.Message()
		}
		a.emitFrom(gen, protocol.Event{
			Kind:    protocol.EventKicked,
			Channel: e.Arguments[0],
			Kicked:  e.Arguments[1],
			By:      e.Nick,
			Reason:  reason,
		})
	})

	conn.AddCallback("TOPIC", func(e *irc.Event) {
		a.emitFrom(gen, protocol.Event{
			Kind:    protocol.EventTopicChanged,
			Channel: e.Arguments[0],
			Topic:   e.Message(),
			Setter:  e.Nick,
		})
	})
	// 332 is the topic reply on join; no setter attribution here.
	conn.AddCallback("332", func(e *irc.Event) {
		if len(e.Arguments) < 3 {
			return
		}
		a.emitFrom(gen, protocol.Event{
			Kind:    protocol.EventTopicChanged,
			Channel: e.Arguments[1],
			Topic:   e.Arguments[2],
		})
	})

	conn.AddCallback("MODE", func(e *irc.Event) {
		if len(e.Arguments) < 2 {
			return
		}
		a.emitFrom(gen, protocol.Event{
			Kind:       protocol.EventMode,
			ModeTarget: e.Arguments[0],
			ModeSetter: e.Nick,
			Modes:      e.Arguments[1],
			ModeParams: append([]string(nil), e.Arguments[2:]...),
		})
	})

	// NAMES replies accumulate until the end marker, then go out as one
	// authoritative snapshot. Callbacks run on the library's single
	// dispatch goroutine, so the accumulator needs no locking.
	names := make(map[string][]protocol.UserInfo)
	conn.AddCallback("353", func(e *irc.Event) {
		if len(e.Arguments) < 4 {
			return
		}
		channel := e.Arguments[2]
		for _, raw := range strings.Fields(e.Arguments[3]) {
			prefixes, nick := splitPrefixedNick(raw)
			if nick == "" {
				continue
			}
			names[channel] = append(names[channel], protocol.UserInfo{
				Nick:     nick,
				Prefixes: prefixes,
			})
		}
	})
	conn.AddCallback("366", func(e *irc.Event) {
		if len(e.Arguments) < 2 {
			return
		}
		channel := e.Arguments[1]
		users := names[channel]
		delete(names, channel)
		a.emitFrom(gen, protocol.Event{
			Kind:    protocol.EventNamesSnapshot,
			Channel: channel,
			Users:   users,
		})
	})

	conn.AddCallback("321", func(e *irc.Event) {
		a.emitFrom(gen, protocol.Event{Kind: protocol.EventListStart})
	})
	conn.AddCallback("322", func(e *irc.Event) {
		if len(e.Arguments) < 2 {
			return
		}
		ev := protocol.Event{
			Kind:     protocol.EventListItem,
			ListName: e.Arguments[1],
		}
		if len(e.Arguments) > 2 {
			if n, err := strconv.Atoi(e.Arguments[2]); err == nil {
				ev.UserCount = n
				ev.HasUserCount = true
			}
		}
		if len(e.Arguments) > 3 {
			topic := e.Arguments[3]
			// Some servers prepend the channel modes in brackets.
			if strings.HasPrefix(topic, "[+") {
				if end := strings.IndexByte(topic, ']'); end > 0 {
					ev.ListModes = topic[1:end]
					topic = strings.TrimLeft(topic[end+1:], " ")
				}
			}
			ev.ListTopic = topic
		}
		a.emitFrom(gen, ev)
	})
	conn.AddCallback("323", func(e *irc.Event) {
		a.emitFrom(gen, protocol.Event{Kind: protocol.EventListEnd})
	})

	// Away handling: 301 reports another user's away message, 305/306
	// report our own away state.
	conn.AddCallback("301", func(e *irc.Event) {
		if len(e.Arguments) < 3 {
			return
		}
		a.emitFrom(gen, protocol.Event{
			Kind:    protocol.EventAway,
			User:    protocol.UserInfo{Nick: e.Arguments[1]},
			Message: e.Arguments[2],
		})
	})
	conn.AddCallback("305", func(e *irc.Event) {
		a.emitFrom(gen, protocol.Event{Kind: protocol.EventAway, Message: ""})
	})
	conn.AddCallback("306", func(e *irc.Event) {
		a.emitFrom(gen, protocol.Event{Kind: protocol.EventAway, Message: "away"})
	})

	// Error numerics pass through as non-fatal protocol errors.
	for _, code := range []string{
		"401", "403", "404", "405", "421", "432", "433", "437",
		"441", "442", "443", "461", "471", "473", "474", "475", "482",
	} {
		code := code
		conn.AddCallback(code, func(e *irc.Event) {
			a.emitFrom(gen, protocol.Event{
				Kind:    protocol.EventProtoError,
				Code:    code,
				Message: strings.Join(e.Arguments[1:], " "),
			})
		})
	}
}

// newStdLogger bridges go-ircevent's stdlib logger onto zerolog at debug
// level.
func newStdLogger(logger *zerolog.Logger) *log.Logger {
	return log.New(&stdLogWriter{logger: logger}, "", 0)
}

type stdLogWriter struct {
	logger *zerolog.Logger
}

func (w *stdLogWriter) Write(p []byte) (int, error) {
	w.logger.Debug().Msg(strings.TrimSpace(string(p)))
	return len(p), nil
}
