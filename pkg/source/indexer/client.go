package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/stakeview/internal/errors"
	"github.com/vango-dev/stakeview/pkg/era"
)

// DefaultTimeout bounds a single request when no http.Client is supplied.
const DefaultTimeout = 15 * time.Second

// maxBody caps how much of a response body is read.
const maxBody = 4 << 20

// Validator is a validator record as served by the indexer. Stake and
// Commission are era-staged values in their raw JSON form; Commission is in
// parts per million.
type Validator struct {
	ID           string          `json:"id"`
	Name         string          `json:"name,omitempty"`
	Stake        json.RawMessage `json:"stake"`
	Commission   json.RawMessage `json:"commission"`
	MetadataHash string          `json:"metadataHash,omitempty"`
}

// Reward is the reward paid for one era, in lovelace.
type Reward struct {
	Era    uint64
	Amount *big.Int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTracer traces every request.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = tracer
	}
}

// Client is an indexer HTTP client.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
	tracer trace.Tracer
}

// New returns a Client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.New(errors.CodeConfigInvalid).WithDetailf("indexer url %q", baseURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")

	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: DefaultTimeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "indexer")
	return c, nil
}

// Validator fetches a validator record.
func (c *Client) Validator(ctx context.Context, id string) (Validator, error) {
	var v Validator
	err := c.get(ctx, "/validators/"+url.PathEscape(id), &v)
	return v, err
}

// Rewards fetches the reward history of a validator, oldest first.
func (c *Client) Rewards(ctx context.Context, id string) ([]Reward, error) {
	var raw []struct {
		Era    json.Number `json:"era"`
		Amount any         `json:"amount"`
	}
	if err := c.get(ctx, "/validators/"+url.PathEscape(id)+"/rewards", &raw); err != nil {
		return nil, err
	}

	rewards := make([]Reward, 0, len(raw))
	for i, r := range raw {
		e, ok := era.ToBigInt(r.Era)
		if !ok || !e.IsUint64() {
			return nil, errors.New(errors.CodeSourceShape).WithDetailf("reward %d: era %q", i, r.Era)
		}
		amount, ok := era.ToBigInt(r.Amount)
		if !ok {
			return nil, errors.New(errors.CodeSourceShape).WithDetailf("reward %d: amount %v", i, r.Amount)
		}
		rewards = append(rewards, Reward{Era: e.Uint64(), Amount: amount})
	}
	return rewards, nil
}

// EraIndex fetches the indexer's current era.
func (c *Client) EraIndex(ctx context.Context) (uint64, error) {
	var body struct {
		Era uint64 `json:"era"`
	}
	if err := c.get(ctx, "/era", &body); err != nil {
		return 0, err
	}
	return body.Era, nil
}

// EpochNo implements chain.EpochSource, so the indexer can feed an
// EraPoller when no node is configured.
func (c *Client) EpochNo(ctx context.Context) (uint64, error) {
	return c.EraIndex(ctx)
}

func (c *Client) get(ctx context.Context, path string, out any) (err error) {
	u := *c.base
	u.Path += path

	if c.tracer != nil {
		var span trace.Span
		ctx, span = c.tracer.Start(ctx, "indexer.get",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(attribute.String("http.url", u.String())))
		defer func() {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()
		}()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return errors.New(errors.CodeIndexerRequest).Wrap(err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.New(errors.CodeIndexerRequest).WithDetail(path).Wrap(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return errors.New(errors.CodeIndexerRequest).WithDetail(path).Wrap(err)
	}
	c.logger.Debug("indexer request", "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errors.New(errors.CodeSourceNotReady).WithDetailf("%s not found", path)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return errors.New(errors.CodeIndexerStatus).WithDetail(statusDetail(path, resp.StatusCode, body))
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return errors.New(errors.CodeSourceShape).WithDetail(path).Wrap(err)
	}
	return nil
}

func statusDetail(path string, status int, body []byte) string {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		return fmt.Sprintf("%s: %d %s", path, status, http.StatusText(status))
	}
	return fmt.Sprintf("%s: %d %s: %s", path, status, http.StatusText(status), msg)
}
