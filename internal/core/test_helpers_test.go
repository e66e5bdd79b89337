package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/ircline/internal/protocol"
)

// fakeConn is a protocol.Client that records outbound commands and lets
// tests inject inbound events.
type fakeConn struct {
	events chan protocol.Event

	mu    sync.Mutex
	calls []string
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan protocol.Event, 32)}
}

func (f *fakeConn) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeConn) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeConn) Connect(cfg protocol.ConnectConfig) {
	f.record("connect " + ServerID(cfg.Host, cfg.Port))
}
func (f *fakeConn) Disconnect(reason string)     { f.record("disconnect " + reason) }
func (f *fakeConn) Join(channel string)          { f.record("join " + channel) }
func (f *fakeConn) Part(channel, reason string)  { f.record("part " + channel) }
func (f *fakeConn) Privmsg(target, text string)  { f.record("privmsg " + target + " " + text) }
func (f *fakeConn) Action(target, text string)   { f.record("action " + target + " " + text) }
func (f *fakeConn) Notice(target, text string)   { f.record("notice " + target + " " + text) }
func (f *fakeConn) Nick(newNick string)          { f.record("nick " + newNick) }
func (f *fakeConn) List()                        { f.record("list") }
func (f *fakeConn) Names(channel string)         { f.record("names " + channel) }
func (f *fakeConn) Raw(line string)              { f.record("raw " + line) }
func (f *fakeConn) Events() <-chan protocol.Event { return f.events }

// newTestSync builds a synchronizer over a fakeConn with deterministic
// message IDs and timestamps, running until test cleanup.
func newTestSync(t *testing.T) (*Synchronizer, *fakeConn) {
	t.Helper()

	conn := newFakeConn()
	logger := zerolog.Nop()
	s := NewSynchronizer(conn, &logger)

	seq := 0
	s.newID = func() string {
		seq++
		return fmt.Sprintf("m%03d", seq)
	}
	s.now = func() time.Time {
		return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.Run(ctx)

	return s, conn
}

// connectRegistered drives the session to Connected and returns the server
// ID.
func connectRegistered(t *testing.T, s *Synchronizer, conn *fakeConn) string {
	t.Helper()

	if err := s.Connect(ConnectDetails{Host: "chat.example", Port: 6667, Nickname: "bob"}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	conn.events <- protocol.Event{Kind: protocol.EventRegistered}
	st := waitFor(t, s, "registered", func(st SessionState) bool {
		return st.Server != nil && st.Server.State == Connected
	})
	return st.Server.ID
}

// waitFor polls snapshots until cond holds.
func waitFor(t *testing.T, s *Synchronizer, desc string, cond func(SessionState) bool) SessionState {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st := s.Snapshot()
		if cond(st) {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
	return SessionState{}
}

// mustSignal waits for a signal of the given kind.
func mustSignal(t *testing.T, ch <-chan Signal, kind SignalKind) Signal {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case sig := <-ch:
			if sig.Kind == kind {
				return sig
			}
		case <-deadline:
			t.Fatalf("expected signal kind %v not received", kind)
			return Signal{}
		}
	}
}
