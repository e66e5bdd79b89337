// Package protocol defines the boundary between the session core and the
// wire-level protocol client. The client owns the socket, framing, TLS and
// line parsing; the core consumes the typed events it emits and drives it
// through the Client command surface.
package protocol

// ConnectConfig carries everything needed to establish one server connection.
type ConnectConfig struct {
	Host     string
	Port     int
	TLS      bool
	Nickname string
	Username string
	RealName string
	Password string
}

// Client is the outbound command surface of the protocol event source.
// Implementations must be safe to call from a single goroutine and must
// never block on network I/O; results arrive asynchronously as Events.
type Client interface {
	// Connect starts establishing a connection. Progress and failure are
	// reported through the event stream.
	Connect(cfg ConnectConfig)
	// Disconnect tears down the connection. A Closed event follows if a
	// connection was established; nothing is emitted for a connection that
	// never opened.
	Disconnect(reason string)

	Join(channel string)
	Part(channel, reason string)
	Privmsg(target, text string)
	Action(target, text string)
	Notice(target, text string)
	Nick(newNick string)
	List()
	Names(channel string)
	Raw(line string)

	// Events is the stream of protocol occurrences. It is closed when the
	// client is shut down.
	Events() <-chan Event
}
