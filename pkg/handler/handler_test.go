package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEchoRepliesWithSamePayload(t *testing.T) {
	e := NewEcho("/chat")
	reply, ok := e.Handle(1.0, "alice", "hello")
	require.True(t, ok)
	assert.Equal(t, "hello", reply)
}

func TestEchoRecordsReceivedMessages(t *testing.T) {
	e := NewEcho("/chat")
	e.Handle(1.0, "alice", "hi")
	e.Handle(2.0, "bob", "yo")

	got := e.Received()
	require.Len(t, got, 2)
	assert.Equal(t, "alice", got[0].Sender)
	assert.Equal(t, "bob", got[1].Sender)
}
