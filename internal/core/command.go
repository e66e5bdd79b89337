package core

// CommandKind describes what the user wants to do.
type CommandKind int

const (
	// CommandConnect establishes a fresh server connection.
	CommandConnect CommandKind = iota
	// CommandDisconnect tears the connection down.
	CommandDisconnect
	// CommandJoin joins a channel by name.
	CommandJoin
	// CommandPart leaves a channel by ID.
	CommandPart
	// CommandSend sends input text to a channel, after local slash-command
	// parsing.
	CommandSend
	// CommandNick requests a nickname change.
	CommandNick
	// CommandNamesRefresh asks the server for a fresh member snapshot.
	CommandNamesRefresh
	// CommandList starts a channel discovery cycle.
	CommandList
)

// ConnectDetails carries the user-supplied connection parameters.
type ConnectDetails struct {
	Host     string
	Port     int
	TLS      bool
	Nickname string
	Username string
	RealName string
	Password string
}

// Command represents an action requested by the user. Exactly one of the
// payload fields is meaningful, selected by Kind.
type Command struct {
	Kind      CommandKind
	Connect   ConnectDetails
	ChannelID string
	Name      string
	Text      string
	Reason    string
	NewNick   string

	reply chan CommandResult
}

// CommandResult is the synchronous outcome of a command. ChannelID names
// the channel the command resolved to (created, joined, or already
// existing), when there is one.
type CommandResult struct {
	ChannelID string
	Err       error
}

// SignalKind identifies an out-of-band notification to the presentation
// layer.
type SignalKind int

const (
	// SignalViewInvalidated means the named channel is no longer valid as
	// an active view (the user was kicked from it or it was removed). The
	// core does not own active-view state; it only reports.
	SignalViewInvalidated SignalKind = iota
)

// Signal is an out-of-band notification carrying the affected channel ID.
type Signal struct {
	Kind      SignalKind
	ChannelID string
}
