package signaling

import (
	"context"
	"errors"
)

// ErrCollaboratorClosed indicates a closed collaborator: Receive
// returns it once its own collaborator is closed, Send once the target
// peer's collaborator is closed.
var ErrCollaboratorClosed = errors.New("signaling: collaborator closed")

// Collaborator is the external signaling boundary the Call Manager
// depends on: a single-consumer inbound queue and a multi-producer
// outbound sink, per peer, preserving order within one CallID.
type Collaborator interface {
	// Send delivers msg to the named peer's inbound queue.
	Send(ctx context.Context, peer string, msg Message) error

	// Receive blocks until a message addressed to this collaborator's
	// owner arrives, or ctx is cancelled.
	Receive(ctx context.Context) (from string, msg Message, err error)

	// Close releases resources and unblocks any pending Receive.
	Close() error
}

// InProcessBus is a shared in-memory signaling fabric connecting
// multiple InProcessCollaborators, used by tests and by the demo CLI
// to exercise the Call Manager without a real network signaling
// channel.
type InProcessBus struct {
	peers map[string]*InProcessCollaborator
}

// NewInProcessBus constructs an empty bus.
func NewInProcessBus() *InProcessBus {
	return &InProcessBus{peers: make(map[string]*InProcessCollaborator)}
}

// Register creates and attaches a collaborator for the named peer.
func (b *InProcessBus) Register(name string) *InProcessCollaborator {
	c := &InProcessCollaborator{
		bus:    b,
		name:   name,
		inbox:  make(chan inboxEntry, 128),
		closed: make(chan struct{}),
	}
	b.peers[name] = c
	return c
}

type inboxEntry struct {
	from string
	msg  Message
}

// InProcessCollaborator is a Collaborator backed by an in-memory
// per-peer channel on a shared InProcessBus.
type InProcessCollaborator struct {
	bus    *InProcessBus
	name   string
	inbox  chan inboxEntry
	closed chan struct{}
}

// Send delivers msg to peer's inbox on the shared bus.
func (c *InProcessCollaborator) Send(ctx context.Context, peer string, msg Message) error {
	target, ok := c.bus.peers[peer]
	if !ok {
		return errors.New("signaling: unknown peer " + peer)
	}
	select {
	case target.inbox <- inboxEntry{from: c.name, msg: msg}:
		return nil
	case <-target.closed:
		return ErrCollaboratorClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive returns the next message addressed to this collaborator.
func (c *InProcessCollaborator) Receive(ctx context.Context) (string, Message, error) {
	select {
	case e := <-c.inbox:
		return e.from, e.msg, nil
	case <-c.closed:
		return "", Message{}, ErrCollaboratorClosed
	case <-ctx.Done():
		return "", Message{}, ctx.Err()
	}
}

// Close unblocks any pending Receive on this collaborator.
func (c *InProcessCollaborator) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}
