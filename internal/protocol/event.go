package protocol

import "time"

// EventKind identifies a protocol occurrence reported by the event source.
type EventKind int

const (
	// EventRegistered fires once the server has accepted registration.
	EventRegistered EventKind = iota
	// EventClosed fires when the connection is gone for good (server close,
	// socket close, or a fatal error). Reason carries a human-readable cause.
	EventClosed
	// EventConnError reports a connection-class failure (lookup, socket,
	// refused). These are fatal for the session.
	EventConnError
	// EventProtoError is a non-fatal server error reply.
	EventProtoError
	// EventMessage is a channel or private message (privmsg, notice, action).
	EventMessage
	// EventJoined reports a user joining a channel.
	EventJoined
	// EventParted reports a user leaving a channel.
	EventParted
	// EventQuit reports a user quitting the server.
	EventQuit
	// EventNickChanged reports a nickname change.
	EventNickChanged
	// EventTopicChanged reports a channel topic change.
	EventTopicChanged
	// EventNamesSnapshot delivers the full member list of a channel.
	EventNamesSnapshot
	// EventListStart begins a channel discovery cycle.
	EventListStart
	// EventListItem is one discovered channel.
	EventListItem
	// EventListEnd ends a channel discovery cycle.
	EventListEnd
	// EventMode reports a mode change on a channel or user.
	EventMode
	// EventKicked reports a user being kicked from a channel.
	EventKicked
	// EventAway reports an away-message notice for a user.
	EventAway
)

// MessageKind distinguishes the flavors of EventMessage.
type MessageKind int

const (
	MessagePrivmsg MessageKind = iota
	MessageNotice
	MessageAction
)

// ConnErrorKind classifies connection-class failures.
type ConnErrorKind int

const (
	ConnErrorGeneric ConnErrorKind = iota
	ConnErrorLookup
	ConnErrorSocket
	ConnErrorRefused
)

// UserInfo is a user record as seen on the wire.
type UserInfo struct {
	Nick     string
	Username string
	Host     string
	// Prefixes holds membership prefix characters ("@", "+", ...) reported
	// for this user in a channel context, empty otherwise.
	Prefixes string
}

// Event is a single typed protocol occurrence. Kind selects which fields
// are meaningful.
type Event struct {
	Kind EventKind
	Time time.Time

	// EventMessage
	MsgKind MessageKind
	From    UserInfo
	Target  string
	Text    string

	// EventJoined, EventParted, EventQuit, EventKicked
	User     UserInfo
	Channel  string
	Reason   string
	Channels []string // EventQuit, EventNickChanged: affected channel names, nil if unknown

	// EventNickChanged
	OldNick string
	NewNick string

	// EventTopicChanged
	Topic  string
	Setter string

	// EventNamesSnapshot
	Users []UserInfo

	// EventListItem
	ListName     string
	ListTopic    string
	ListModes    string
	UserCount    int
	HasUserCount bool

	// EventMode
	ModeTarget string
	ModeSetter string
	Modes      string
	ModeParams []string

	// EventKicked
	Kicked string
	By     string

	// EventConnError, EventProtoError, EventClosed
	ErrKind ConnErrorKind
	Code    string
	Message string
}
