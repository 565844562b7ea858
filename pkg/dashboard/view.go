package dashboard

import (
	"encoding/json"
	"math/big"

	"github.com/vango-dev/stakeview/internal/errors"
	"github.com/vango-dev/stakeview/pkg/era"
	"github.com/vango-dev/stakeview/pkg/resource"
	"github.com/vango-dev/stakeview/pkg/source/blob"
	"github.com/vango-dev/stakeview/pkg/source/chain"
	"github.com/vango-dev/stakeview/pkg/source/indexer"
)

// Status values of a rendered view or section.
const (
	StatusLoading = "loading"
	StatusError   = "error"
	StatusReady   = "ready"
)

// ValidatorView is the JSON body of GET /validators/{id}.
type ValidatorView struct {
	ID     string     `json:"id"`
	Status string     `json:"status"`
	Error  *ErrorView `json:"error,omitempty"`
	// Era is the index the staged values were resolved against.
	Era *uint64 `json:"era,omitempty"`

	Name          string      `json:"name,omitempty"`
	Stake         *StagedView `json:"stake,omitempty"`
	Commission    *StagedView `json:"commission,omitempty"`
	Pledge        *StagedView `json:"pledge,omitempty"`
	RetiringEpoch *uint64     `json:"retiringEpoch,omitempty"`

	Metadata   *Section[blob.PoolMetadata] `json:"metadata,omitempty"`
	Rewards    *Section[RewardsView]       `json:"rewards,omitempty"`
	StakeShare *Section[string]            `json:"stakeShare,omitempty"`
}

// StagedView is a resolved era-staged value in display form.
type StagedView struct {
	Current string `json:"current"`
	After   string `json:"after,omitempty"`
	Display string `json:"display"`
	Pending bool   `json:"pending"`
}

// ErrorView is the JSON form of a failed resource.
type ErrorView struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// Section is a part of the page with its own loading and error state.
type Section[T any] struct {
	Status string     `json:"status"`
	Error  *ErrorView `json:"error,omitempty"`
	Data   *T         `json:"data,omitempty"`
}

// RewardsView is the reward history of a validator.
type RewardsView struct {
	Total string        `json:"total"`
	Items []RewardEntry `json:"items"`
}

// RewardEntry is the reward of one era.
type RewardEntry struct {
	Era    uint64 `json:"era"`
	Amount string `json:"amount"`
}

// core is the merged data of the validator and, when present, its pool.
type core struct {
	validator *indexer.Validator
	pool      *chain.PoolState
}

// render builds the view of s against the era index from idx. The status of
// the page comes from the validator and pool resources merged; metadata and
// rewards are sections that load and fail on their own.
func render(s *screen, idx era.IndexReader) ValidatorView {
	view := ValidatorView{ID: s.id}
	if n, ok := idx.CurrentIndex(); ok {
		view.Era = &n
	}

	states := []resource.Status{s.validator.State()}
	if s.pool != nil {
		states = append(states, s.pool.State())
	}
	merged := resource.Map(resource.Merge(states...), func(t resource.Tuple) (core, error) {
		var c core
		if v, ok := t[0].(indexer.Validator); ok {
			c.validator = &v
		}
		if len(t) > 1 {
			if p, ok := t[1].(chain.PoolState); ok {
				c.pool = &p
			}
		}
		return c, nil
	})

	view = resource.Match(merged, resource.Handlers[core, ValidatorView]{
		Loading: func() ValidatorView {
			view.Status = StatusLoading
			return view
		},
		Error: func(err error) ValidatorView {
			view.Status = StatusError
			view.Error = errorView(err)
			return view
		},
		Data: func(c *core) (ValidatorView, error) {
			out := view
			v := c.validator
			if v == nil {
				out.Status = StatusLoading
				return out, nil
			}
			out.Status = StatusReady
			out.Name = v.Name
			out.Stake = staged(era.Resolve(v.Stake, idx), era.FormatADA)
			out.Commission = staged(era.Resolve(v.Commission, idx), formatPPM)
			if p := c.pool; p != nil {
				out.Commission = staged(era.Resolve(p.Commission, idx), formatPPM)
				out.Pledge = staged(era.Resolve(p.Pledge, idx), era.FormatADA)
				out.RetiringEpoch = p.RetiringEpoch
			}
			return out, nil
		},
	})

	if s.metadata != nil && s.metadata.Generation() > 0 {
		view.Metadata = section(s.metadata.State(), func(m *blob.PoolMetadata) (blob.PoolMetadata, error) {
			return *m, nil
		})
	}
	view.Rewards = section(s.rewards.State(), rewardsView)
	if s.share != nil {
		view.StakeShare = section(s.share.State(), func(r **big.Rat) (string, error) {
			return era.FormatPercent(*r), nil
		})
	}
	return view
}

func section[T, U any](st resource.State[T], fn func(*T) (U, error)) *Section[U] {
	return resource.Match(st, resource.Handlers[T, *Section[U]]{
		Loading: func() *Section[U] {
			return &Section[U]{Status: StatusLoading}
		},
		Error: func(err error) *Section[U] {
			return &Section[U]{Status: StatusError, Error: errorView(err)}
		},
		Data: func(t *T) (*Section[U], error) {
			if t == nil {
				return &Section[U]{Status: StatusLoading}, nil
			}
			u, err := fn(t)
			if err != nil {
				return nil, err
			}
			return &Section[U]{Status: StatusReady, Data: &u}, nil
		},
	})
}

func rewardsView(rs *[]indexer.Reward) (RewardsView, error) {
	total := new(big.Int)
	out := RewardsView{Items: make([]RewardEntry, 0, len(*rs))}
	for _, r := range *rs {
		amount := r.Amount
		if amount == nil {
			amount = new(big.Int)
		}
		total.Add(total, amount)
		out.Items = append(out.Items, RewardEntry{Era: r.Era, Amount: era.FormatADA(amount)})
	}
	out.Total = era.FormatADA(total)
	return out, nil
}

func staged(c era.Current[*big.Int], format func(*big.Int) string) *StagedView {
	out := &StagedView{
		Current: format(c.Current),
		Display: era.DisplayString(era.Collapse(c, bigEqual), format),
		Pending: c.HasChange(bigEqual),
	}
	if c.After != nil {
		out.After = format(*c.After)
	}
	return out
}

func bigEqual(a, b *big.Int) bool {
	return a.Cmp(b) == 0
}

func formatPPM(ppm *big.Int) string {
	return era.FormatPercent(era.RatioPPM(ppm))
}

func errorView(err error) *ErrorView {
	e := errors.FromError(err, errors.CodeFetchFailed)
	out := &ErrorView{Code: e.Code, Message: e.Message, Detail: e.Detail}
	if e.Wrapped != nil && out.Detail == "" {
		out.Detail = e.Wrapped.Error()
	}
	return out
}

// encode writes v as indented JSON.
func encode(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
