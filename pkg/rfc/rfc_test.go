package rfc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsyncCallDeliversResultAfterHostReplies(t *testing.T) {
	pair, host := MakePair[int, int](4)

	pending := pair.AsyncCall(21)

	param, reply, ok := host.TryRecv()
	require.True(t, ok)
	assert.Equal(t, 21, param)
	reply(param * 2)

	got, ok := pending.TryResult()
	require.True(t, ok)
	assert.Equal(t, 42, got)
}

func TestTryResultFalseBeforeHostReplies(t *testing.T) {
	pair, _ := MakePair[int, int](4)
	pending := pair.AsyncCall(1)

	_, ok := pending.TryResult()
	assert.False(t, ok)
}

func TestTryRecvFalseWhenEmpty(t *testing.T) {
	_, host := MakePair[string, string](1)

	_, _, ok := host.TryRecv()
	assert.False(t, ok)
}

func TestCallBlocksUntilReplied(t *testing.T) {
	pair, host := MakePair[int, string](1)

	done := make(chan string, 1)
	go func() {
		done <- pair.Call(7)
	}()

	param, reply, _ := host.Recv()
	reply("got-" + string(rune('0'+param)))

	assert.Equal(t, "got-7", <-done)
}
