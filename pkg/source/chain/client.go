package chain

import (
	"context"
	"io"
	"log/slog"
	"math/big"

	ouroboros "github.com/blinklabs-io/gouroboros"
	"github.com/blinklabs-io/gouroboros/protocol/localstatequery"

	"github.com/vango-dev/stakeview/internal/config"
	"github.com/vango-dev/stakeview/internal/errors"
	"github.com/vango-dev/stakeview/pkg/era"
)

// Querier is the part of the local state query client used by Client.
// *localstatequery.Client implements it.
type Querier interface {
	GetEpochNo() (int, error)
	GetStakePools() (*localstatequery.StakePoolsResult, error)
	GetStakeDistribution() (*localstatequery.StakeDistributionResult, error)
	GetPoolState(poolIds []any) (*localstatequery.PoolStateResult, error)
}

// Client queries a node. Queries block the underlying protocol client one at
// a time; a cancelled context abandons the wait but not the query.
type Client struct {
	query  Querier
	closer io.Closer
	logger *slog.Logger
}

// NewClient returns a Client over q.
func NewClient(q Querier, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{query: q, logger: logger.With("component", "chain")}
}

// Dial connects to the node described by cfg.
func Dial(cfg config.NodeConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	magic, err := cfg.Magic()
	if err != nil {
		return nil, err
	}

	errorChan := make(chan error, 1)
	conn, err := ouroboros.NewConnection(
		ouroboros.WithNetworkMagic(magic),
		ouroboros.WithErrorChan(errorChan),
		ouroboros.WithNodeToNode(false),
		ouroboros.WithKeepAlive(true),
		ouroboros.WithLocalStateQueryConfig(localstatequery.NewConfig()),
	)
	if err != nil {
		return nil, errors.New(errors.CodeNodeQuery).WithDetail("create connection").Wrap(err)
	}

	network, address := cfg.Dial()
	if err := conn.Dial(network, address); err != nil {
		return nil, errors.New(errors.CodeNodeQuery).
			WithDetailf("dial %s %s", network, address).
			WithSuggestion("Check that the node is running and node.socketPath is correct").
			Wrap(err)
	}

	c := NewClient(conn.LocalStateQuery().Client, logger)
	c.closer = conn
	go func() {
		for err := range errorChan {
			c.logger.Error("node connection error", "error", err)
		}
	}()
	c.logger.Info("connected to node", "network", network, "address", address, "magic", magic)
	return c, nil
}

// Close closes the node connection, if Client owns one.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// EpochNo returns the node's current epoch number.
func (c *Client) EpochNo(ctx context.Context) (uint64, error) {
	n, err := call(ctx, c, "GetEpochNo", c.query.GetEpochNo)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, shapeError("negative epoch number")
	}
	return uint64(n), nil
}

// PoolCount returns the number of registered pools.
func (c *Client) PoolCount(ctx context.Context) (int, error) {
	res, err := call(ctx, c, "GetStakePools", c.query.GetStakePools)
	if err != nil {
		return 0, err
	}
	if res == nil {
		return 0, shapeError("empty stake pools result")
	}
	n, ok := collectionLen(any(*res))
	if !ok {
		return 0, shapeError("stake pools result is not a set")
	}
	return n, nil
}

// StakeShare returns the pool's share of active stake.
func (c *Client) StakeShare(ctx context.Context, id PoolID) (*big.Rat, error) {
	res, err := call(ctx, c, "GetStakeDistribution", c.query.GetStakeDistribution)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, shapeError("empty stake distribution result")
	}
	return stakeShare(any(*res), id)
}

// PoolState is a pool's registration as of Epoch, with staged changes.
// Commission is in parts per million.
type PoolState struct {
	Epoch      uint64
	Params     PoolParams
	Commission era.Value[*big.Int]
	Pledge     era.Value[*big.Int]
	// RetiringEpoch is set when the pool has announced retirement.
	RetiringEpoch *uint64
}

// Positions in the pool state query result.
const (
	stateParams = iota
	stateFutureParams
	stateRetiring
)

// PoolState returns the current and pending registration of a pool. A
// re-registration submitted this epoch shows up as ValueAfter.
func (c *Client) PoolState(ctx context.Context, id PoolID) (PoolState, error) {
	var st PoolState
	epoch, err := c.EpochNo(ctx)
	if err != nil {
		return st, err
	}
	res, err := call(ctx, c, "GetPoolState", func() (*localstatequery.PoolStateResult, error) {
		return c.query.GetPoolState([]any{id.ledger()})
	})
	if err != nil {
		return st, err
	}
	if res == nil {
		return st, shapeError("empty pool state result")
	}
	return decodePoolState(any(*res), id, epoch)
}

func decodePoolState(raw any, id PoolID, epoch uint64) (PoolState, error) {
	st := PoolState{Epoch: epoch}
	parts, ok := raw.([]any)
	if !ok || len(parts) <= stateRetiring {
		return st, shapeError("pool state is not an array")
	}

	current, ok := lookupPool(parts[stateParams], id)
	if !ok {
		return st, errors.New(errors.CodeSourceNotReady).WithDetailf("pool %s is not registered", id)
	}
	params, err := decodePoolParams(current)
	if err != nil {
		return st, err
	}
	next := params
	if future, ok := lookupPool(parts[stateFutureParams], id); ok {
		if next, err = decodePoolParams(future); err != nil {
			return st, err
		}
	}
	if retiring, ok := lookupPool(parts[stateRetiring], id); ok {
		if n, ok := era.ToBigInt(retiring); ok && n.IsUint64() {
			e := n.Uint64()
			st.RetiringEpoch = &e
		}
	}

	st.Params = params
	st.Commission = era.Value[*big.Int]{Era: epoch, Value: params.MarginPPM(), ValueAfter: next.MarginPPM()}
	st.Pledge = era.Value[*big.Int]{Era: epoch, Value: params.Pledge, ValueAfter: next.Pledge}
	return st, nil
}

// call runs a blocking query and waits for it or for ctx.
func call[T any](ctx context.Context, c *Client, name string, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-done:
		if r.err != nil {
			c.logger.Debug("query failed", "query", name, "error", r.err)
			return r.v, errors.New(errors.CodeNodeQuery).WithDetail(name).Wrap(r.err)
		}
		return r.v, nil
	}
}
