package correlate

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"becknet/internal/platform/logger"
)

func newTestCorrelator() *Correlator {
	return New(time.Minute, logger.NewNop())
}

func payload(s string) json.RawMessage {
	return json.RawMessage(s)
}

func TestRegister_ZeroExpectedResolvesImmediately(t *testing.T) {
	c := newTestCorrelator()
	require.NoError(t, c.Register("txn-1", 0, time.Now().Add(time.Minute)))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	outcome, err := c.Await(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, StateResolved, outcome.State)
	assert.Zero(t, outcome.Received)
}

func TestRegister_DuplicateTransaction(t *testing.T) {
	c := newTestCorrelator()
	require.NoError(t, c.Register("txn-1", 1, time.Now().Add(time.Minute)))
	assert.ErrorIs(t, c.Register("txn-1", 1, time.Now().Add(time.Minute)), ErrDuplicateCorrelation)
}

func TestAccept_PointToPoint(t *testing.T) {
	c := newTestCorrelator()
	require.NoError(t, c.Register("txn-1", 1, time.Now().Add(time.Minute)))

	result := c.Accept("txn-1", "seller.example.com", payload(`{"order":{}}`))
	assert.Equal(t, Completed, result)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	outcome, err := c.Await(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, StateResolved, outcome.State)
	require.Len(t, outcome.Replies, 1)
	assert.Equal(t, "seller.example.com", outcome.Replies[0].ResponderID)
}

func TestAccept_FanOutCompletesAtExpectedCount(t *testing.T) {
	c := newTestCorrelator()
	require.NoError(t, c.Register("txn-1", 3, time.Now().Add(time.Minute)))

	assert.Equal(t, Accepted, c.Accept("txn-1", "a.example.com", payload(`{}`)))
	assert.Equal(t, Accepted, c.Accept("txn-1", "b.example.com", payload(`{}`)))
	assert.Equal(t, Completed, c.Accept("txn-1", "c.example.com", payload(`{}`)))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	outcome, err := c.Await(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, StateResolved, outcome.State)
	assert.Equal(t, 3, outcome.Received)
	assert.Equal(t, 3, outcome.Expected)
}

func TestAccept_DuplicateResponder(t *testing.T) {
	c := newTestCorrelator()
	require.NoError(t, c.Register("txn-1", 3, time.Now().Add(time.Minute)))

	first := payload(`{"catalog":"v1"}`)
	assert.Equal(t, Accepted, c.Accept("txn-1", "a.example.com", first))
	assert.Equal(t, DuplicateResponder, c.Accept("txn-1", "a.example.com", payload(`{"catalog":"v2"}`)))

	outcome, ok := c.Outcome("txn-1")
	require.True(t, ok)
	assert.Equal(t, 1, outcome.Received)
	assert.JSONEq(t, string(first), string(outcome.Replies[0].Payload), "first reply wins")
}

func TestAccept_LateOrUnknown(t *testing.T) {
	c := newTestCorrelator()

	assert.Equal(t, LateOrUnknown, c.Accept("never-registered", "a.example.com", payload(`{}`)))

	require.NoError(t, c.Register("txn-1", 1, time.Now().Add(time.Minute)))
	assert.Equal(t, Completed, c.Accept("txn-1", "a.example.com", payload(`{}`)))
	assert.Equal(t, LateOrUnknown, c.Accept("txn-1", "b.example.com", payload(`{}`)),
		"replies after resolution are dropped")
}

func TestExpiry_PartialRepliesAreKept(t *testing.T) {
	c := newTestCorrelator()
	require.NoError(t, c.Register("txn-1", 3, time.Now().Add(50*time.Millisecond)))

	assert.Equal(t, Accepted, c.Accept("txn-1", "a.example.com", payload(`{}`)))
	assert.Equal(t, Accepted, c.Accept("txn-1", "b.example.com", payload(`{}`)))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	outcome, err := c.Await(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, StateExpired, outcome.State)
	assert.Equal(t, 2, outcome.Received)
	assert.Equal(t, 3, outcome.Expected)
}

func TestUnbounded_CollectsUntilDeadline(t *testing.T) {
	c := newTestCorrelator()
	require.NoError(t, c.Register("txn-1", Unbounded, time.Now().Add(100*time.Millisecond)))

	assert.Equal(t, Accepted, c.Accept("txn-1", "a.example.com", payload(`{}`)))
	assert.Equal(t, Accepted, c.Accept("txn-1", "b.example.com", payload(`{}`)))
	assert.Equal(t, Accepted, c.Accept("txn-1", "c.example.com", payload(`{}`)))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	outcome, err := c.Await(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, StateExpired, outcome.State)
	assert.Equal(t, 3, outcome.Received)
}

func TestClose_ResolvesManually(t *testing.T) {
	c := newTestCorrelator()
	require.NoError(t, c.Register("txn-1", 1, time.Now().Add(time.Minute)))

	assert.True(t, c.Close("txn-1"))
	assert.False(t, c.Close("txn-1"), "already terminal")
	assert.False(t, c.Close("txn-2"), "unknown")

	outcome, ok := c.Outcome("txn-1")
	require.True(t, ok)
	assert.Equal(t, StateResolved, outcome.State)
}

func TestReplies_StreamsInArrivalOrder(t *testing.T) {
	c := newTestCorrelator()
	require.NoError(t, c.Register("txn-1", 2, time.Now().Add(time.Minute)))

	stream, ok := c.Replies("txn-1")
	require.True(t, ok)

	c.Accept("txn-1", "a.example.com", payload(`{"n":1}`))
	c.Accept("txn-1", "b.example.com", payload(`{"n":2}`))

	var ids []string
	for reply := range stream {
		ids = append(ids, reply.ResponderID)
	}
	assert.Equal(t, []string{"a.example.com", "b.example.com"}, ids)
}

func TestAwait_AbandonedWaitKeepsEntryLive(t *testing.T) {
	c := newTestCorrelator()
	require.NoError(t, c.Register("txn-1", 1, time.Now().Add(time.Minute)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Await(ctx, "txn-1")
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, Completed, c.Accept("txn-1", "a.example.com", payload(`{}`)))
}

func TestAwait_UnknownTransaction(t *testing.T) {
	c := newTestCorrelator()
	_, err := c.Await(context.Background(), "txn-404")
	assert.Error(t, err)
}
