//go:build integration

package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"becknet/internal/audit"
	"becknet/pkg/testutil/containers"
)

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pc := containers.NewPostgresContainer(t)
	ctx := context.Background()

	store, err := audit.NewPostgresStore(ctx, pc.URL)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	base := time.Now().UTC().Truncate(time.Microsecond)
	entries := []audit.Entry{
		{ID: "e-1", Direction: audit.Inbound, Action: "select", TransactionID: "txn-1", MessageID: "m-1", SenderID: "buyer.example.com", Status: audit.StatusReceived, Timestamp: base},
		{ID: "e-2", Direction: audit.Outbound, Action: "on_select", TransactionID: "txn-1", MessageID: "m-2", Status: audit.StatusProcessed, Timestamp: base.Add(time.Second)},
		{ID: "e-3", Direction: audit.Inbound, Action: "search", TransactionID: "txn-2", MessageID: "m-3", Status: audit.StatusFailed, Error: "fan-out failed", Timestamp: base},
	}
	for _, e := range entries {
		require.NoError(t, store.Append(ctx, e))
	}

	got, err := store.ListByTransaction(ctx, "txn-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "e-1", got[0].ID, "ordered by time")
	assert.Equal(t, "e-2", got[1].ID)
	assert.Equal(t, audit.Outbound, got[1].Direction)

	got, err = store.ListByTransaction(ctx, "txn-2")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "fan-out failed", got[0].Error)

	got, err = store.ListByTransaction(ctx, "txn-404")
	require.NoError(t, err)
	assert.Empty(t, got)
}
