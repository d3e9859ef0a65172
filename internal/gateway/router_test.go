package gateway_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"becknet/internal/correlate"
	"becknet/internal/gateway"
	"becknet/internal/platform/logger"
	"becknet/internal/protocol"
	"becknet/internal/registry"
	"becknet/internal/registry/mocks"
	"becknet/internal/signing"
)

func ackHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(protocol.NewAck())
	})
}

func eligibleSeller(id, url string) registry.Participant {
	return registry.Participant{
		SubscriberID:     id,
		SubscriberURL:    url,
		Type:             "BPP",
		Domains:          []string{"ONDC:RET10"},
		Cities:           []string{"std:080"},
		UniqueKeyID:      "key1",
		SigningPublicKey: signing.EncodeKey(make([]byte, 32)),
		Status:           registry.StatusActive,
	}
}

func searchEnvelope(bapURI string) protocol.Envelope {
	return protocol.Envelope{
		Domain:        "ONDC:RET10",
		Country:       "IND",
		City:          "std:080",
		Action:        protocol.ActionSearch,
		CoreVersion:   "1.2.0",
		BapID:         "buyer.example.com",
		BapURI:        bapURI,
		TransactionID: "txn-fanout",
		MessageID:     "msg-1",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		TTL:           "PT1S",
	}
}

func newFanoutFixture(t *testing.T, upstream registry.Upstream) (*gateway.Router, *correlate.Correlator) {
	t.Helper()
	_, priv, err := signing.GenerateKeyPair()
	require.NoError(t, err)

	reg := registry.NewClient(upstream, time.Hour, logger.NewNop())
	corr := correlate.New(time.Minute, logger.NewNop())
	disp := gateway.NewDispatcher("gateway.example.com", "key1", priv, 5*time.Minute, logger.NewNop(), nil)
	router := gateway.NewRouter(reg, corr, disp, 4, time.Second, time.Second, logger.NewNop(), nil)
	return router, corr
}

func TestFanout_StreamsRepliesAndExpiresPartial(t *testing.T) {
	// The requester collects forwarded on_search callbacks.
	forwarded := make(chan []byte, 4)
	requester := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/on_search", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		forwarded <- body
		json.NewEncoder(w).Encode(protocol.NewAck())
	}))
	defer requester.Close()

	sellerA := httptest.NewServer(ackHandler())
	defer sellerA.Close()
	sellerB := httptest.NewServer(ackHandler())
	defer sellerB.Close()
	// Seller C acknowledges but never calls back.
	sellerC := httptest.NewServer(ackHandler())
	defer sellerC.Close()

	ctrl := gomock.NewController(t)
	upstream := mocks.NewMockUpstream(ctrl)
	upstream.EXPECT().
		Lookup(gomock.Any(), gomock.Any()).
		Return([]registry.Participant{
			eligibleSeller("a.example.com", sellerA.URL),
			eligibleSeller("b.example.com", sellerB.URL),
			eligibleSeller("c.example.com", sellerC.URL),
		}, nil)

	router, corr := newFanoutFixture(t, upstream)

	env := searchEnvelope(requester.URL)
	body := []byte(`{"context":{"action":"search"},"message":{"intent":{}}}`)
	require.NoError(t, router.Fanout(context.Background(), env, body))

	// Two sellers send their catalogs back.
	assert.Equal(t, correlate.Accepted, router.AcceptReply(protocol.Envelope{
		TransactionID: env.TransactionID, BppID: "a.example.com",
	}, json.RawMessage(`{"catalog":"a"}`)))
	assert.Equal(t, correlate.Accepted, router.AcceptReply(protocol.Envelope{
		TransactionID: env.TransactionID, BppID: "b.example.com",
	}, json.RawMessage(`{"catalog":"b"}`)))

	for i := 0; i < 2; i++ {
		select {
		case <-forwarded:
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for forwarded reply")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	outcome, err := corr.Await(ctx, env.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, correlate.StateExpired, outcome.State, "one seller never replied")
	assert.Equal(t, 3, outcome.Expected)
	assert.Equal(t, 2, outcome.Received)
}

func TestFanout_EmptyEligibleSetResolvesImmediately(t *testing.T) {
	ctrl := gomock.NewController(t)
	upstream := mocks.NewMockUpstream(ctrl)
	upstream.EXPECT().Lookup(gomock.Any(), gomock.Any()).Return(nil, nil)

	router, corr := newFanoutFixture(t, upstream)

	env := searchEnvelope("http://unused.example.com")
	require.NoError(t, router.Fanout(context.Background(), env, []byte(`{}`)))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	outcome, err := corr.Await(ctx, env.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, correlate.StateResolved, outcome.State)
	assert.Zero(t, outcome.Received)
}

func TestFanout_RegistryDown(t *testing.T) {
	ctrl := gomock.NewController(t)
	upstream := mocks.NewMockUpstream(ctrl)
	upstream.EXPECT().Lookup(gomock.Any(), gomock.Any()).Return(nil, registry.ErrUnavailable)

	router, _ := newFanoutFixture(t, upstream)

	err := router.Fanout(context.Background(), searchEnvelope("http://unused.example.com"), []byte(`{}`))
	assert.ErrorIs(t, err, registry.ErrUnavailable)
}

func TestFanout_UnreachableTargetDoesNotFailTheRest(t *testing.T) {
	sellerA := httptest.NewServer(ackHandler())
	defer sellerA.Close()

	ctrl := gomock.NewController(t)
	upstream := mocks.NewMockUpstream(ctrl)
	upstream.EXPECT().
		Lookup(gomock.Any(), gomock.Any()).
		Return([]registry.Participant{
			eligibleSeller("a.example.com", sellerA.URL),
			eligibleSeller("down.example.com", "http://127.0.0.1:1"),
		}, nil)

	router, corr := newFanoutFixture(t, upstream)

	env := searchEnvelope("http://unused.example.com")
	require.NoError(t, router.Fanout(context.Background(), env, []byte(`{}`)))

	assert.Equal(t, correlate.Accepted, router.AcceptReply(protocol.Envelope{
		TransactionID: env.TransactionID, BppID: "a.example.com",
	}, json.RawMessage(`{"catalog":"a"}`)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	outcome, err := corr.Await(ctx, env.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Received)
}

func TestAcceptReply_DropsLateAndDuplicate(t *testing.T) {
	ctrl := gomock.NewController(t)
	upstream := mocks.NewMockUpstream(ctrl)

	router, corr := newFanoutFixture(t, upstream)
	require.NoError(t, corr.Register("txn-1", 2, time.Now().Add(time.Minute)))

	env := protocol.Envelope{TransactionID: "txn-1", BppID: "a.example.com"}
	assert.Equal(t, correlate.Accepted, router.AcceptReply(env, json.RawMessage(`{}`)))
	assert.Equal(t, correlate.DuplicateResponder, router.AcceptReply(env, json.RawMessage(`{}`)))

	unknown := protocol.Envelope{TransactionID: "txn-unknown", BppID: "a.example.com"}
	assert.Equal(t, correlate.LateOrUnknown, router.AcceptReply(unknown, json.RawMessage(`{}`)))
}
