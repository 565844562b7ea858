package indexer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	serrors "github.com/vango-dev/stakeview/internal/errors"
	"github.com/vango-dev/stakeview/internal/logging"
	"github.com/vango-dev/stakeview/pkg/era"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/api/", WithHTTPClient(srv.Client()), WithLogger(logging.Discard()),
		WithTracer(noop.NewTracerProvider().Tracer("test")))
	require.NoError(t, err)
	return c
}

func TestValidator(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/validators/pool1abc", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(`{
			"id": "pool1abc",
			"name": "Example Pool",
			"stake": {"era": 480, "value": "1000000000", "valueAfter": {"$bigint": "1500000000"}},
			"commission": [480, 20000, 20000],
			"metadataHash": "abcd"
		}`))
	})

	v, err := c.Validator(context.Background(), "pool1abc")
	require.NoError(t, err)
	assert.Equal(t, "Example Pool", v.Name)
	assert.Equal(t, "abcd", v.MetadataHash)

	stake := era.Resolve(v.Stake, era.Fixed(480))
	assert.Equal(t, "1,000.000000 ADA (1,500.000000 ADA)", era.DisplayString(stake, era.FormatADA))

	commission := era.Resolve([]byte(v.Commission), era.Fixed(480))
	assert.Equal(t, "20000", commission.Current.String())
}

func TestRewards(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/validators/p/rewards", r.URL.Path)
		w.Write([]byte(`[{"era": 478, "amount": "123456789012345678901"}, {"era": 479, "amount": 42}]`))
	})
	rewards, err := c.Rewards(context.Background(), "p")
	require.NoError(t, err)
	require.Len(t, rewards, 2)
	assert.Equal(t, uint64(478), rewards[0].Era)
	assert.Equal(t, "123456789012345678901", rewards[0].Amount.String())
	assert.Equal(t, "42", rewards[1].Amount.String())
}

func TestRewardsMalformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"era": 478, "amount": "lots"}]`))
	})
	_, err := c.Rewards(context.Background(), "p")
	assert.True(t, serrors.HasCode(err, serrors.CodeSourceShape))
}

func TestEraIndex(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/era", r.URL.Path)
		w.Write([]byte(`{"era": 481}`))
	})
	n, err := c.EpochNo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(481), n)
}

func TestRequestErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		code   string
		detail string
	}{
		{"not found", http.StatusNotFound, "", serrors.CodeSourceNotReady, "not found"},
		{"server error", http.StatusBadGateway, "upstream timeout", serrors.CodeIndexerStatus, "upstream timeout"},
		{"empty error body", http.StatusInternalServerError, "", serrors.CodeIndexerStatus, "500 Internal Server Error"},
		{"malformed body", http.StatusOK, "{", serrors.CodeSourceShape, "/validators/x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := c.Validator(context.Background(), "x")
			require.Error(t, err)
			assert.True(t, serrors.HasCode(err, tt.code), "%v", err)
			assert.Contains(t, err.Error(), tt.detail)
		})
	}
}

func TestRequestCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Validator(ctx, "x")
	assert.True(t, serrors.HasCode(err, serrors.CodeIndexerRequest))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "not a url", "/relative"} {
		_, err := New(u)
		assert.True(t, serrors.HasCode(err, serrors.CodeConfigInvalid), u)
	}
}
