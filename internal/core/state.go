package core

import (
	"strconv"
	"strings"
	"time"
)

// ConnState is the lifecycle of the server connection.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ChannelKind distinguishes real channels from private-message contexts.
// The server log is a Channel whose ID equals the server ID.
type ChannelKind int

const (
	KindChannel ChannelKind = iota
	KindPrivateMessage
)

// MessageType classifies a log entry.
type MessageType int

const (
	MsgMessage MessageType = iota
	MsgNotice
	MsgAction
	MsgJoin
	MsgPart
	MsgQuit
	MsgKick
	MsgNick
	MsgMode
	MsgTopic
	MsgSystem
	MsgError
	MsgInfo
	MsgRaw
)

func (t MessageType) String() string {
	switch t {
	case MsgNotice:
		return "notice"
	case MsgAction:
		return "action"
	case MsgJoin:
		return "join"
	case MsgPart:
		return "part"
	case MsgQuit:
		return "quit"
	case MsgKick:
		return "kick"
	case MsgNick:
		return "nick"
	case MsgMode:
		return "mode"
	case MsgTopic:
		return "topic"
	case MsgSystem:
		return "system"
	case MsgError:
		return "error"
	case MsgInfo:
		return "info"
	case MsgRaw:
		return "raw"
	default:
		return "message"
	}
}

// casefold normalizes a name or nickname for identity comparison. ASCII
// lowercase only; RFC 1459 casemapping ("[]\^" folding) is not applied, a
// known compatibility gap with servers announcing CASEMAPPING=rfc1459.
func casefold(s string) string {
	return strings.ToLower(s)
}

// Casefold is the exported identity normalization used for channel and
// nickname keys.
func Casefold(s string) string { return casefold(s) }

// ServerID derives the session identifier from host and port.
func ServerID(host string, port int) string {
	return host + ":" + strconv.Itoa(port)
}

// ChannelID derives a channel identity from the server ID and the display
// name. Names differing only by case map to the same ID.
func ChannelID(serverID, name string) string {
	return serverID + casefold(name)
}

// ServerSession is the per-connection record. Exactly one exists per
// synchronizer.
type ServerSession struct {
	ID          string
	Host        string
	Port        int
	Nickname    string
	State       ConnState
	AwayMessage string
}

// Topic is a channel topic with attribution.
type Topic struct {
	Text  string
	SetBy string
	SetAt time.Time
}

// User is a channel member. The map key is the casefolded nickname; the
// Nickname field preserves display case.
type User struct {
	Nickname string
	Username string
	Hostname string
	Modes    string // prefix characters and mode letters, e.g. "@" or "ov"
}

// IsOp reports whether the user holds an op-class membership (owner, admin,
// op or half-op prefixes, or the corresponding mode letters).
func (u *User) IsOp() bool {
	return strings.ContainsAny(u.Modes, "~&@%qaoh")
}

// IsVoice reports whether the user is voiced.
func (u *User) IsVoice() bool {
	return strings.ContainsAny(u.Modes, "+v")
}

// Message is one immutable log entry. Messages are append-only: once in a
// channel's log they are never mutated or reordered.
type Message struct {
	ID        string
	Time      time.Time
	Nickname  string
	Target    string
	Content   string
	Type      MessageType
	ChannelID string
	IsSelf    bool

	// Type-specific extras.
	OldNickname string
	Kicked      string
	KickReason  string
	ModeParams  []string
	RawLine     string
}

// Channel is one conversation context: a joined channel, a private-message
// exchange, or the synthetic server log.
type Channel struct {
	ID       string
	ServerID string
	Name     string
	Kind     ChannelKind
	Topic    *Topic
	Users    map[string]*User // keyed by casefolded nickname
	Messages []Message
}

// IsServerLog reports whether this is the synthetic server-log channel.
func (c *Channel) IsServerLog() bool {
	return c.ID == c.ServerID
}

// AvailableChannelInfo is one entry of the channel discovery list. The list
// is transient: it is rebuilt from scratch on every discovery cycle.
type AvailableChannelInfo struct {
	ID           string
	ServerID     string
	Name         string
	Topic        string
	Modes        string
	UserCount    int
	HasUserCount bool
}

// SessionState is the complete queryable model of one server connection.
// Snapshot returns deep copies of everything except message payloads, which
// are immutable by contract.
type SessionState struct {
	Server    *ServerSession
	Channels  map[string]*Channel
	Order     []string // channel IDs in creation order
	Available []AvailableChannelInfo
	listing   bool // inside a discovery start/end pair
}

func newSessionState() *SessionState {
	return &SessionState{
		Channels: make(map[string]*Channel),
	}
}

// channel returns the channel with the given ID, or nil.
func (st *SessionState) channel(id string) *Channel {
	return st.Channels[id]
}

// channelByName resolves a channel by display name, case-insensitively.
func (st *SessionState) channelByName(name string) *Channel {
	if st.Server == nil {
		return nil
	}
	return st.Channels[ChannelID(st.Server.ID, name)]
}

func (st *SessionState) addChannel(c *Channel) {
	st.Channels[c.ID] = c
	st.Order = append(st.Order, c.ID)
}

func (st *SessionState) removeChannel(id string) {
	delete(st.Channels, id)
	for i, cid := range st.Order {
		if cid == id {
			st.Order = append(st.Order[:i], st.Order[i+1:]...)
			break
		}
	}
}

// clearChannels drops every channel, including the server log.
func (st *SessionState) clearChannels() {
	st.Channels = make(map[string]*Channel)
	st.Order = nil
}

// copy produces a snapshot safe to hand to other goroutines. Channel user
// maps and the order/discovery slices are duplicated; message slices share
// their backing arrays, which is safe because entries are never rewritten.
func (st *SessionState) copy() SessionState {
	out := SessionState{
		Channels: make(map[string]*Channel, len(st.Channels)),
		Order:    append([]string(nil), st.Order...),
	}
	if st.Server != nil {
		srv := *st.Server
		out.Server = &srv
	}
	for id, c := range st.Channels {
		cc := &Channel{
			ID:       c.ID,
			ServerID: c.ServerID,
			Name:     c.Name,
			Kind:     c.Kind,
			Users:    make(map[string]*User, len(c.Users)),
			Messages: c.Messages[:len(c.Messages):len(c.Messages)],
		}
		if c.Topic != nil {
			t := *c.Topic
			cc.Topic = &t
		}
		for key, u := range c.Users {
			uc := *u
			cc.Users[key] = &uc
		}
		out.Channels[id] = cc
	}
	if st.Available != nil {
		out.Available = append([]AvailableChannelInfo(nil), st.Available...)
	}
	return out
}
