package signaling

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInProcessCollaboratorDeliversInOrder(t *testing.T) {
	bus := NewInProcessBus()
	alice := bus.Register("alice")
	bob := bus.Register("bob")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, alice.Send(ctx, "bob", Message{CallRequest: &CallRequest{CallID: "1"}}))
	require.NoError(t, alice.Send(ctx, "bob", Message{CallEnded: &CallEnded{CallID: "1"}}))

	from, msg1, err := bob.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", from)
	require.NotNil(t, msg1.CallRequest)
	assert.Equal(t, "1", msg1.CallRequest.CallID)

	_, msg2, err := bob.Receive(ctx)
	require.NoError(t, err)
	require.NotNil(t, msg2.CallEnded)
}

func TestInProcessCollaboratorSendUnknownPeer(t *testing.T) {
	bus := NewInProcessBus()
	alice := bus.Register("alice")
	err := alice.Send(context.Background(), "ghost", Message{})
	assert.Error(t, err)
}

func TestInProcessCollaboratorCloseUnblocksReceive(t *testing.T) {
	bus := NewInProcessBus()
	alice := bus.Register("alice")

	done := make(chan error, 1)
	go func() {
		_, _, err := alice.Receive(context.Background())
		done <- err
	}()

	require.NoError(t, alice.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrCollaboratorClosed)
	case <-time.After(time.Second):
		t.Fatal("receive did not unblock on close")
	}
}
