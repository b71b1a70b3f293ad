// Package chains is the read-only chain metadata registry, loaded once at
// start.
package chains

import (
	"sort"

	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"

	"github.com/ipfs-force-community/sophon-connector/types"
)

var log = logging.Logger("chains")

// Registry maps chain ids to metadata. It is immutable after construction so
// lookups need no locking.
type Registry struct {
	byID map[uint64]*types.Chain
	ids  []uint64
}

// NewRegistry builds a registry from the built-in records followed by extra.
// Later records replace earlier ones with the same id.
func NewRegistry(extra ...*types.Chain) *Registry {
	r := &Registry{byID: make(map[uint64]*types.Chain)}
	for _, c := range builtinChains() {
		r.add(c)
	}
	for _, c := range extra {
		r.add(c)
	}
	r.ids = make([]uint64, 0, len(r.byID))
	for id := range r.byID {
		r.ids = append(r.ids, id)
	}
	sort.Slice(r.ids, func(i, j int) bool { return r.ids[i] < r.ids[j] })
	return r
}

func (r *Registry) add(c *types.Chain) {
	if c == nil || c.ID == 0 {
		return
	}
	r.byID[c.ID] = c
}

func (r *Registry) Get(id uint64) (*types.Chain, error) {
	if c, ok := r.byID[id]; ok {
		return c, nil
	}
	return nil, errors.Wrapf(types.ErrUnsupportedChain, "chain %d not in registry", id)
}

func (r *Registry) MustGet(id uint64) *types.Chain {
	c, err := r.Get(id)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the registry record or the unknown placeholder.
func (r *Registry) Lookup(id uint64) *types.Chain {
	if c, ok := r.byID[id]; ok {
		return c
	}
	return types.UnknownChain(id)
}

func (r *Registry) List() []*types.Chain {
	out := make([]*types.Chain, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.byID[id])
	}
	return out
}

// Default is the record with the lowest id, nil for an empty registry.
func (r *Registry) Default() *types.Chain {
	if len(r.ids) == 0 {
		return nil
	}
	return r.byID[r.ids[0]]
}

func (r *Registry) Len() int { return len(r.ids) }
