package core

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vovakirdan/ircline/internal/protocol"
)

func TestPrivateMessageCreatesChannel(t *testing.T) {
	s, conn := newTestSync(t)
	serverID := connectRegistered(t, s, conn)

	conn.events <- protocol.Event{
		Kind:   protocol.EventMessage,
		From:   protocol.UserInfo{Nick: "alice", Username: "al", Host: "example.org"},
		Target: "bob",
		Text:   "hi bob",
	}

	st := waitFor(t, s, "pm channel", func(st SessionState) bool {
		return st.Channels[serverID+"alice"] != nil
	})
	ch := st.Channels[serverID+"alice"]
	if ch.Kind != KindPrivateMessage {
		t.Fatalf("expected private-message kind, got %v", ch.Kind)
	}
	if len(ch.Users) != 2 {
		t.Fatalf("expected exactly two members, got %d", len(ch.Users))
	}
	for _, nick := range []string{"bob", "alice"} {
		if _, ok := ch.Users[nick]; !ok {
			t.Fatalf("member %q missing", nick)
		}
	}
	if len(ch.Messages) != 1 || ch.Messages[0].Content != "hi bob" {
		t.Fatalf("expected single message, got %+v", ch.Messages)
	}

	// A second message reuses the channel.
	conn.events <- protocol.Event{
		Kind:   protocol.EventMessage,
		From:   protocol.UserInfo{Nick: "alice"},
		Target: "bob",
		Text:   "you there?",
	}
	waitFor(t, s, "second pm", func(st SessionState) bool {
		return len(st.Channels[serverID+"alice"].Messages) == 2
	})
}

func TestServerNoticeGoesToServerLog(t *testing.T) {
	s, conn := newTestSync(t)
	serverID := connectRegistered(t, s, conn)

	conn.events <- protocol.Event{
		Kind:    protocol.EventMessage,
		MsgKind: protocol.MessageNotice,
		From:    protocol.UserInfo{Nick: "NickServ"},
		Target:  "bob",
		Text:    "This nickname is registered.",
	}

	st := waitFor(t, s, "notice in log", func(st SessionState) bool {
		msgs := st.Channels[serverID].Messages
		return msgs[len(msgs)-1].Type == MsgNotice
	})
	if st.Channels[serverID+"nickserv"] != nil {
		t.Fatal("notice must not open a private channel")
	}
}

func TestJoinEventAddsMemberOnce(t *testing.T) {
	s, conn := newTestSync(t)
	connectRegistered(t, s, conn)
	id, _ := s.JoinChannel("#go")

	for i := 0; i < 2; i++ {
		conn.events <- protocol.Event{
			Kind:    protocol.EventJoined,
			User:    protocol.UserInfo{Nick: "Alice"},
			Channel: "#go",
		}
	}

	st := waitFor(t, s, "two join messages", func(st SessionState) bool {
		joins := 0
		for _, m := range st.Channels[id].Messages {
			if m.Type == MsgJoin {
				joins++
			}
		}
		return joins == 2
	})
	ch := st.Channels[id]
	if _, ok := ch.Users["alice"]; !ok {
		t.Fatal("alice not a member")
	}
	if len(ch.Users) != 2 {
		t.Fatalf("duplicate join must not duplicate member, got %d members", len(ch.Users))
	}
}

func TestSelfJoinRequestsNames(t *testing.T) {
	s, conn := newTestSync(t)
	connectRegistered(t, s, conn)
	s.JoinChannel("#go")

	conn.events <- protocol.Event{
		Kind:    protocol.EventJoined,
		User:    protocol.UserInfo{Nick: "bob"},
		Channel: "#go",
	}

	waitFor(t, s, "names request", func(SessionState) bool {
		for _, call := range conn.Calls() {
			if call == "names #go" {
				return true
			}
		}
		return false
	})
}

func TestPartEventRemovesMember(t *testing.T) {
	s, conn := newTestSync(t)
	connectRegistered(t, s, conn)
	id, _ := s.JoinChannel("#go")

	conn.events <- protocol.Event{
		Kind:    protocol.EventJoined,
		User:    protocol.UserInfo{Nick: "Alice"},
		Channel: "#go",
	}
	conn.events <- protocol.Event{
		Kind:    protocol.EventParted,
		User:    protocol.UserInfo{Nick: "ALICE"}, // case-insensitive match
		Channel: "#go",
		Reason:  "lunch",
	}

	st := waitFor(t, s, "part applied", func(st SessionState) bool {
		msgs := st.Channels[id].Messages
		return msgs[len(msgs)-1].Type == MsgPart
	})
	if _, ok := st.Channels[id].Users["alice"]; ok {
		t.Fatal("alice still a member after part")
	}
	last := st.Channels[id].Messages[len(st.Channels[id].Messages)-1]
	if !strings.Contains(last.Content, "lunch") {
		t.Fatalf("part reason missing: %+v", last)
	}
}

func TestQuitAffectsListedChannelsOnly(t *testing.T) {
	s, conn := newTestSync(t)
	connectRegistered(t, s, conn)
	idA, _ := s.JoinChannel("#a")
	idB, _ := s.JoinChannel("#b")
	idC, _ := s.JoinChannel("#c")

	for _, name := range []string{"#a", "#b", "#c"} {
		conn.events <- protocol.Event{
			Kind:    protocol.EventJoined,
			User:    protocol.UserInfo{Nick: "alice"},
			Channel: name,
		}
	}
	waitFor(t, s, "alice everywhere", func(st SessionState) bool {
		_, ok := st.Channels[idC].Users["alice"]
		return ok
	})

	conn.events <- protocol.Event{
		Kind:     protocol.EventQuit,
		User:     protocol.UserInfo{Nick: "alice"},
		Reason:   "ping timeout",
		Channels: []string{"#a", "#b"},
	}

	st := waitFor(t, s, "quit applied", func(st SessionState) bool {
		_, ok := st.Channels[idB].Users["alice"]
		return !ok
	})
	for _, id := range []string{idA, idB} {
		if _, ok := st.Channels[id].Users["alice"]; ok {
			t.Fatalf("alice still in %s", id)
		}
		quits := 0
		for _, m := range st.Channels[id].Messages {
			if m.Type == MsgQuit {
				quits++
			}
		}
		if quits != 1 {
			t.Fatalf("expected exactly one quit message in %s, got %d", id, quits)
		}
	}
	// #c was not listed: member stays, no quit message.
	if _, ok := st.Channels[idC].Users["alice"]; !ok {
		t.Fatal("alice wrongly removed from #c")
	}
	for _, m := range st.Channels[idC].Messages {
		if m.Type == MsgQuit {
			t.Fatal("quit message leaked into #c")
		}
	}
}

func TestNickChangeRewritesMembersNotHistory(t *testing.T) {
	s, conn := newTestSync(t)
	connectRegistered(t, s, conn)
	idA, _ := s.JoinChannel("#a")
	idB, _ := s.JoinChannel("#b")

	for _, name := range []string{"#a", "#b"} {
		conn.events <- protocol.Event{
			Kind:    protocol.EventJoined,
			User:    protocol.UserInfo{Nick: "bob2"},
			Channel: name,
		}
	}
	conn.events <- protocol.Event{
		Kind:    protocol.EventMessage,
		From:    protocol.UserInfo{Nick: "bob2"},
		Target:  "#a",
		Text:    "before rename",
	}
	waitFor(t, s, "message from bob2", func(st SessionState) bool {
		msgs := st.Channels[idA].Messages
		return msgs[len(msgs)-1].Content == "before rename"
	})

	conn.events <- protocol.Event{
		Kind:    protocol.EventNickChanged,
		OldNick: "bob2",
		NewNick: "bobby",
	}

	st := waitFor(t, s, "rename applied", func(st SessionState) bool {
		_, ok := st.Channels[idB].Users["bobby"]
		return ok
	})
	for _, id := range []string{idA, idB} {
		ch := st.Channels[id]
		if _, ok := ch.Users["bob2"]; ok {
			t.Fatalf("old key survives in %s", id)
		}
		u, ok := ch.Users["bobby"]
		if !ok || u.Nickname != "bobby" {
			t.Fatalf("renamed member missing in %s: %+v", id, u)
		}
		nicks := 0
		for _, m := range ch.Messages {
			if m.Type == MsgNick {
				nicks++
			}
		}
		if nicks != 1 {
			t.Fatalf("expected one nick message in %s, got %d", id, nicks)
		}
	}
	// History keeps the literal nickname from append time.
	var found bool
	for _, m := range st.Channels[idA].Messages {
		if m.Content == "before rename" {
			found = true
			if m.Nickname != "bob2" {
				t.Fatalf("history rewritten: %+v", m)
			}
		}
	}
	if !found {
		t.Fatal("historical message lost")
	}
}

func TestOwnNickConfirmation(t *testing.T) {
	s, conn := newTestSync(t)
	connectRegistered(t, s, conn)
	id, _ := s.JoinChannel("#go")

	conn.events <- protocol.Event{
		Kind:    protocol.EventNickChanged,
		OldNick: "bob",
		NewNick: "robert",
	}

	st := waitFor(t, s, "nick confirmed", func(st SessionState) bool {
		return st.Server.Nickname == "robert"
	})
	if _, ok := st.Channels[id].Users["robert"]; !ok {
		t.Fatal("own membership not re-keyed")
	}
}

func TestTopicChange(t *testing.T) {
	s, conn := newTestSync(t)
	connectRegistered(t, s, conn)
	id, _ := s.JoinChannel("#go")

	conn.events <- protocol.Event{
		Kind:    protocol.EventTopicChanged,
		Channel: "#go",
		Topic:   "welcome gophers",
		Setter:  "alice",
	}

	st := waitFor(t, s, "topic set", func(st SessionState) bool {
		return st.Channels[id].Topic != nil
	})
	topic := st.Channels[id].Topic
	if topic.Text != "welcome gophers" || topic.SetBy != "alice" || topic.SetAt.IsZero() {
		t.Fatalf("unexpected topic: %+v", topic)
	}
}

func TestNamesSnapshotReplacesWholesale(t *testing.T) {
	s, conn := newTestSync(t)
	connectRegistered(t, s, conn)
	id, _ := s.JoinChannel("#go")

	conn.events <- protocol.Event{
		Kind:    protocol.EventJoined,
		User:    protocol.UserInfo{Nick: "ghost"},
		Channel: "#go",
	}
	conn.events <- protocol.Event{
		Kind:    protocol.EventNamesSnapshot,
		Channel: "#go",
		Users: []protocol.UserInfo{
			{Nick: "bob"},
			{Nick: "Alice", Prefixes: "@"},
			{Nick: "carol", Prefixes: "+"},
		},
	}

	st := waitFor(t, s, "snapshot applied", func(st SessionState) bool {
		_, ghost := st.Channels[id].Users["ghost"]
		return !ghost && len(st.Channels[id].Users) == 3
	})
	ch := st.Channels[id]
	want := map[string]bool{"bob": true, "alice": true, "carol": true}
	got := map[string]bool{}
	for key := range ch.Users {
		got[key] = true
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("member keys mismatch (-want +got):\n%s", diff)
	}
	if !ch.Users["alice"].IsOp() {
		t.Fatal("@ prefix must derive op")
	}
	if !ch.Users["carol"].IsVoice() {
		t.Fatal("+ prefix must derive voice")
	}
	if ch.Users["bob"].IsOp() || ch.Users["bob"].IsVoice() {
		t.Fatal("bob has no derived privileges")
	}
}

func TestDiscoveryCycle(t *testing.T) {
	s, conn := newTestSync(t)
	serverID := connectRegistered(t, s, conn)

	// Items before a start are dropped.
	conn.events <- protocol.Event{Kind: protocol.EventListItem, ListName: "#stray"}
	conn.events <- protocol.Event{Kind: protocol.EventListStart}
	conn.events <- protocol.Event{Kind: protocol.EventListItem, ListName: "#a", UserCount: 5, HasUserCount: true}
	conn.events <- protocol.Event{Kind: protocol.EventListItem, ListName: "#b", UserCount: 10, HasUserCount: true}
	conn.events <- protocol.Event{Kind: protocol.EventListItem, ListName: "#c"}
	conn.events <- protocol.Event{Kind: protocol.EventListEnd}

	st := waitFor(t, s, "discovery done", func(st SessionState) bool {
		return len(st.Available) == 3
	})
	var names []string
	for _, info := range st.Available {
		names = append(names, info.Name)
	}
	if diff := cmp.Diff([]string{"#b", "#a", "#c"}, names); diff != "" {
		t.Fatalf("discovery order mismatch (-want +got):\n%s", diff)
	}
	if st.Available[0].ID != ChannelID(serverID, "#b") {
		t.Fatalf("unexpected id: %q", st.Available[0].ID)
	}
}

func TestModeOnChannelAndSelf(t *testing.T) {
	s, conn := newTestSync(t)
	serverID := connectRegistered(t, s, conn)
	id, _ := s.JoinChannel("#go")

	conn.events <- protocol.Event{
		Kind:       protocol.EventMode,
		ModeTarget: "#go",
		ModeSetter: "alice",
		Modes:      "+o",
		ModeParams: []string{"bob"},
	}
	st := waitFor(t, s, "channel mode", func(st SessionState) bool {
		msgs := st.Channels[id].Messages
		return msgs[len(msgs)-1].Type == MsgMode
	})
	last := st.Channels[id].Messages[len(st.Channels[id].Messages)-1]
	if last.Content != "+o" || len(last.ModeParams) != 1 || last.ModeParams[0] != "bob" {
		t.Fatalf("unexpected mode message: %+v", last)
	}
	// Prefix-affecting mode asks for a fresh snapshot instead of deriving.
	waitFor(t, s, "names refresh", func(SessionState) bool {
		names := 0
		for _, call := range conn.Calls() {
			if call == "names #go" {
				names++
			}
		}
		return names >= 1
	})

	conn.events <- protocol.Event{
		Kind:       protocol.EventMode,
		ModeTarget: "bob",
		ModeSetter: "bob",
		Modes:      "+i",
	}
	waitFor(t, s, "self mode in server log", func(st SessionState) bool {
		msgs := st.Channels[serverID].Messages
		return msgs[len(msgs)-1].Type == MsgMode
	})
}

func TestKickRemovesMemberAndSignalsSelf(t *testing.T) {
	s, conn := newTestSync(t)
	connectRegistered(t, s, conn)
	id, _ := s.JoinChannel("#test")

	conn.events <- protocol.Event{
		Kind:    protocol.EventKicked,
		Channel: "#test",
		Kicked:  "bob",
		By:      "alice",
		Reason:  "spam",
	}

	st := waitFor(t, s, "kick applied", func(st SessionState) bool {
		_, ok := st.Channels[id].Users["bob"]
		return !ok
	})
	last := st.Channels[id].Messages[len(st.Channels[id].Messages)-1]
	if last.Type != MsgKick || last.Kicked != "bob" || last.Nickname != "alice" || last.KickReason != "spam" {
		t.Fatalf("unexpected kick message: %+v", last)
	}

	sig := mustSignal(t, s.Signals(), SignalViewInvalidated)
	if sig.ChannelID != id {
		t.Fatalf("signal names %q, want %q", sig.ChannelID, id)
	}
	// The channel itself survives; only the view is invalidated.
	if _, ok := st.Channels[id]; !ok {
		t.Fatal("channel removed on kick")
	}
}

func TestKickOfOtherUserNoSignal(t *testing.T) {
	s, conn := newTestSync(t)
	connectRegistered(t, s, conn)
	id, _ := s.JoinChannel("#test")

	conn.events <- protocol.Event{
		Kind:    protocol.EventJoined,
		User:    protocol.UserInfo{Nick: "mallory"},
		Channel: "#test",
	}
	conn.events <- protocol.Event{
		Kind:    protocol.EventKicked,
		Channel: "#test",
		Kicked:  "mallory",
		By:      "alice",
	}

	waitFor(t, s, "mallory kicked", func(st SessionState) bool {
		_, ok := st.Channels[id].Users["mallory"]
		return !ok
	})
	select {
	case sig := <-s.Signals():
		t.Fatalf("unexpected signal %+v", sig)
	default:
	}
}

func TestConnectionErrorForcesDisconnect(t *testing.T) {
	s, conn := newTestSync(t)
	serverID := connectRegistered(t, s, conn)
	s.JoinChannel("#go")

	conn.events <- protocol.Event{
		Kind:    protocol.EventConnError,
		ErrKind: protocol.ConnErrorRefused,
		Message: "connection refused",
	}

	st := waitFor(t, s, "disconnected", func(st SessionState) bool {
		return st.Server.State == Disconnected
	})
	if len(st.Channels) != 1 {
		t.Fatalf("expected only the server log to survive, got %d channels", len(st.Channels))
	}
	if st.Channels[serverID] == nil {
		t.Fatal("server log missing")
	}
	if st.Available != nil {
		t.Fatal("discovery list not cleared")
	}
}

func TestProtocolErrorKeepsConnection(t *testing.T) {
	s, conn := newTestSync(t)
	serverID := connectRegistered(t, s, conn)

	conn.events <- protocol.Event{
		Kind:    protocol.EventProtoError,
		Code:    "401",
		Message: "no such nick",
	}

	st := waitFor(t, s, "error logged", func(st SessionState) bool {
		msgs := st.Channels[serverID].Messages
		return msgs[len(msgs)-1].Type == MsgError
	})
	if st.Server.State != Connected {
		t.Fatalf("non-fatal error must not change state, got %v", st.Server.State)
	}
}

func TestEventsForUnknownChannelsAreNoOps(t *testing.T) {
	s, conn := newTestSync(t)
	connectRegistered(t, s, conn)

	conn.events <- protocol.Event{Kind: protocol.EventParted, User: protocol.UserInfo{Nick: "x"}, Channel: "#ghost"}
	conn.events <- protocol.Event{Kind: protocol.EventKicked, Channel: "#ghost", Kicked: "x", By: "y"}
	conn.events <- protocol.Event{Kind: protocol.EventTopicChanged, Channel: "#ghost", Topic: "t"}
	conn.events <- protocol.Event{Kind: protocol.EventNamesSnapshot, Channel: "#ghost"}
	// A later, valid event proves the loop survived them all.
	conn.events <- protocol.Event{Kind: protocol.EventProtoError, Code: "421", Message: "unknown"}

	waitFor(t, s, "loop alive", func(st SessionState) bool {
		msgs := st.Channels[st.Server.ID].Messages
		return msgs[len(msgs)-1].Type == MsgError
	})
}
