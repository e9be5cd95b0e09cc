// Package session manages the per-actor connections to the messaging
// network: pairing, reconnect with delay, teardown, and the persisted
// session index.
package session

import "context"

// The messaging-network client is an external collaborator. The gateway
// depends only on this surface plus a close cause distinguishing permanent
// logout from everything else; the wire protocol behind it is out of scope.

type EventKind string

const (
	// EventOpen fires when the connection is live.
	EventOpen EventKind = "open"
	// EventClosed fires when the connection drops; Cause says why.
	EventClosed EventKind = "closed"
)

type CloseCause string

const (
	// CauseLoggedOut means the credentials were invalidated remotely.
	// Terminal: reconnecting with them cannot succeed.
	CauseLoggedOut CloseCause = "logged_out"
	CauseLost      CloseCause = "connection_lost"
)

// Permanent reports whether the cause rules out any reconnect.
func (c CloseCause) Permanent() bool { return c == CauseLoggedOut }

type Event struct {
	Kind  EventKind
	Cause CloseCause // set for EventClosed
}

// Conn is one live connection to the messaging network.
type Conn interface {
	// Events delivers lifecycle transitions. The channel closes when the
	// connection is finally gone.
	Events() <-chan Event

	// Registered reports whether the credential store already holds a
	// completed pairing.
	Registered() bool

	RequestPairingCode(ctx context.Context, number string) (string, error)
	Send(ctx context.Context, recipient, text string) error
	Logout(ctx context.Context) error
	Close() error
}

// Dialer opens connections using the credential store at credsDir,
// creating it when absent.
type Dialer interface {
	Dial(ctx context.Context, credsDir string) (Conn, error)
}
