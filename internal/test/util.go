package test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/relaton/go-relaton/bibitem"
	"github.com/relaton/go-relaton/provider"
	"github.com/stretchr/testify/require"
)

var globalSeed atomic.Int64

// RandomCodes returns n distinct document codes starting with prefix.
func RandomCodes(prefix string, n int) []string {
	rng := rand.New(rand.NewSource(globalSeed.Add(1)))
	seen := make(map[int]struct{}, n)
	codes := make([]string, 0, n)
	for len(codes) < n {
		num := rng.Intn(99999) + 1
		if _, ok := seen[num]; ok {
			continue
		}
		seen[num] = struct{}{}
		codes = append(codes, fmt.Sprintf("%s %d", prefix, num))
	}
	return codes
}

// NewStore returns an in-memory datastore safe for concurrent use.
func NewStore() datastore.Datastore {
	return dssync.MutexWrap(datastore.NewMapDatastore())
}

// NewItem returns an item with a primary identifier and, if year is not
// empty, a published date in that year.
func NewItem(docid, year string) *bibitem.Bibdata {
	item := bibitem.New(docid)
	if year != "" {
		item.Date = []bibitem.Date{{Type: "published", On: year}}
	}
	return item
}

// Transient returns a transient provider failure.
func Transient(prefix string) error {
	return &provider.TransientError{Provider: prefix, Err: errors.New("connection reset")}
}

// Provider is an in-memory provider that records how it is called.
type Provider struct {
	provider.Base

	// FetchFunc, if set, replaces the lookup of registered items.
	FetchFunc func(ctx context.Context, code, year string, opts provider.Options) (bibitem.Item, error)
	// Delay is how long each fetch takes.
	Delay time.Duration

	mu    sync.Mutex
	items map[string]*bibitem.Bibdata
	codes []string

	calls     atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
}

var _ provider.Provider = (*Provider)(nil)

// NewProvider creates a provider for prefix.
func NewProvider(t testing.TB, prefix string, options ...provider.BaseOption) *Provider {
	base, err := provider.NewBase(prefix, options...)
	require.NoError(t, err)
	return &Provider{
		Base:  base,
		items: make(map[string]*bibitem.Bibdata),
	}
}

// Add registers the item returned for code.
func (p *Provider) Add(code string, item *bibitem.Bibdata) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items[code] = item
}

func (p *Provider) Fetch(ctx context.Context, code, year string, opts provider.Options) (bibitem.Item, error) {
	p.calls.Add(1)
	n := p.active.Add(1)
	defer p.active.Add(-1)
	for {
		m := p.maxActive.Load()
		if n <= m || p.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	p.mu.Lock()
	p.codes = append(p.codes, code)
	p.mu.Unlock()

	if p.Delay != 0 {
		timer := time.NewTimer(p.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if p.FetchFunc != nil {
		return p.FetchFunc(ctx, code, year, opts)
	}

	p.mu.Lock()
	item, ok := p.items[code]
	p.mu.Unlock()
	if !ok {
		return nil, nil
	}
	cp := *item
	return &cp, nil
}

// Calls returns the number of fetches made.
func (p *Provider) Calls() int {
	return int(p.calls.Load())
}

// MaxActive returns the largest number of fetches that ran at once.
func (p *Provider) MaxActive() int {
	return int(p.maxActive.Load())
}

// Codes returns the codes fetched, in call order.
func (p *Provider) Codes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.codes...)
}
