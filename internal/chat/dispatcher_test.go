package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDeliveryQueueFIFOAndCapacity(t *testing.T) {
	queue := NewDeliveryQueue(2)

	require.NoError(t, queue.Push(NewMessage("a", "b", "1")))
	require.NoError(t, queue.Push(NewMessage("a", "b", "2")))
	require.ErrorIs(t, queue.Push(NewMessage("a", "b", "3")), ErrDeliveryQueueFull)

	msg, ok := queue.Pop()
	require.True(t, ok)
	require.Equal(t, "1", msg.Body)

	msg, ok = queue.Pop()
	require.True(t, ok)
	require.Equal(t, "2", msg.Body)
}

func TestDeliveryQueueReplayIgnoresCapacity(t *testing.T) {
	queue := NewDeliveryQueue(1)
	require.NoError(t, queue.Push(NewMessage("a", "b", "1")))

	require.NoError(t, queue.pushReplay([]Message{NewMessage("a", "b", "2"), NewMessage("a", "b", "3")}))
	require.Equal(t, 3, queue.Len())
}

func TestDeliveryQueueCloseWakesBlockedPop(t *testing.T) {
	queue := NewDeliveryQueue(0)

	done := make(chan bool)
	go func() {
		_, ok := queue.Pop()
		done <- ok
	}()

	select {
	case <-done:
		t.Fatal("pop returned on an empty open queue")
	case <-time.After(50 * time.Millisecond):
	}

	queue.Close()

	select {
	case ok := <-done:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("pop was not woken by close")
	}

	require.ErrorIs(t, queue.Push(NewMessage("a", "b", "late")), ErrQueueClosed)
}

func TestDeliveryQueuePopDrainsAfterCloseThenClear(t *testing.T) {
	queue := NewDeliveryQueue(0)
	require.NoError(t, queue.Push(NewMessage("a", "b", "1")))
	require.NoError(t, queue.Push(NewMessage("a", "b", "2")))
	queue.Close()

	msg, ok := queue.Pop()
	require.True(t, ok)
	require.Equal(t, "1", msg.Body)

	require.Equal(t, 1, queue.Clear())
	_, ok = queue.Pop()
	require.False(t, ok)
}

func TestDispatcherUnknownRecipientQueuesNothing(t *testing.T) {
	registry := NewRegistry(4)
	queue := NewDeliveryQueue(0)
	dispatcher := NewDispatcher(registry, queue, nil)

	err := dispatcher.Enqueue("alice", "nosuchuser", "hi")
	require.ErrorIs(t, err, ErrUnknownRecipient)
	require.Zero(t, queue.Len())
	require.Zero(t, registry.Len())
}

func TestDispatcherRoutesByRecipientState(t *testing.T) {
	registry := NewRegistry(4)
	queue := NewDeliveryQueue(0)
	dispatcher := NewDispatcher(registry, queue, nil)

	_, err := registry.Login("bob", &recordingTransport{})
	require.NoError(t, err)

	require.NoError(t, dispatcher.Enqueue("alice", "bob", "online"))
	require.Equal(t, 1, queue.Len())

	registry.Logout("bob")
	require.NoError(t, dispatcher.Enqueue("alice", "bob", "offline"))
	require.Equal(t, 1, queue.Len())

	info, _ := registry.Find("bob")
	require.Equal(t, 1, info.Pending)
}

func TestDispatcherReplayPreservesOrder(t *testing.T) {
	registry := NewRegistry(4)
	queue := NewDeliveryQueue(0)
	dispatcher := NewDispatcher(registry, queue, nil)

	_, err := registry.Login("bob", &recordingTransport{})
	require.NoError(t, err)
	registry.Logout("bob")

	require.NoError(t, dispatcher.Enqueue("alice", "bob", "hello1"))
	require.NoError(t, dispatcher.Enqueue("alice", "bob", "hello2"))

	_, err = registry.Login("bob", &recordingTransport{})
	require.NoError(t, err)

	// Sent after reconnect but before the replay: must queue behind the backlog.
	require.NoError(t, dispatcher.Enqueue("alice", "bob", "hello3"))
	require.Zero(t, queue.Len())

	moved, err := dispatcher.ReplayOffline("bob")
	require.NoError(t, err)
	require.Equal(t, 3, moved)

	for _, want := range []string{"hello1", "hello2", "hello3"} {
		msg, ok := queue.Pop()
		require.True(t, ok)
		require.Equal(t, want, msg.Body)
	}

	moved, err = dispatcher.ReplayOffline("bob")
	require.NoError(t, err)
	require.Zero(t, moved)

	require.NoError(t, dispatcher.Enqueue("alice", "bob", "direct"))
	require.Equal(t, 1, queue.Len())
}

func TestDispatcherReplayOnClosedQueueKeepsBacklog(t *testing.T) {
	registry := NewRegistry(4)
	queue := NewDeliveryQueue(0)
	dispatcher := NewDispatcher(registry, queue, nil)

	_, err := registry.Login("bob", &recordingTransport{})
	require.NoError(t, err)
	registry.Logout("bob")
	require.NoError(t, dispatcher.Enqueue("alice", "bob", "kept"))

	_, err = registry.Login("bob", &recordingTransport{})
	require.NoError(t, err)
	queue.Close()

	_, err = dispatcher.ReplayOffline("bob")
	require.ErrorIs(t, err, ErrQueueClosed)

	info, _ := registry.Find("bob")
	require.Equal(t, 1, info.Pending)
}

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand("m bob hello there", 16)
	require.NoError(t, err)
	require.Equal(t, Command{Kind: CommandMessage, To: "bob", Body: "hello there"}, cmd)

	cmd, err = ParseCommand("l\r", 16)
	require.NoError(t, err)
	require.Equal(t, CommandList, cmd.Kind)

	cmd, err = ParseCommand("q", 16)
	require.NoError(t, err)
	require.Equal(t, CommandQuit, cmd.Kind)

	cmd, err = ParseCommand("hello", 16)
	require.NoError(t, err)
	require.Equal(t, CommandUnknown, cmd.Kind)

	for _, line := range []string{"m", "m bob", "m  bob hi", "m " + "abcdefghijklmnopq" + " hi"} {
		_, err := ParseCommand(line, 16)
		require.ErrorIs(t, err, ErrMalformedCommand, "line %q", line)
	}
}

func TestMessageFormat(t *testing.T) {
	require.Equal(t, "Message from alice: hi there\n", NewMessage("alice", "bob", "hi there").Format())
}
