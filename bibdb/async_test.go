package bibdb_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/relaton/go-relaton/bibdb"
	"github.com/relaton/go-relaton/bibitem"
	"github.com/relaton/go-relaton/internal/test"
	"github.com/relaton/go-relaton/provider"
	"github.com/stretchr/testify/require"
)

type result struct {
	item bibitem.Item
	err  error
}

func TestFetchAsync(t *testing.T) {
	ctx := context.Background()
	iso := test.NewProvider(t, "ISO", provider.WithWorkers(3))
	iso.Delay = 10 * time.Millisecond
	codes := test.RandomCodes("ISO", 12)
	for _, code := range codes {
		iso.Add(code, test.NewItem(code, ""))
	}
	db := newDB(t, bibdb.WithRegistry(newRegistry(t, iso)), bibdb.WithGlobalStore(test.NewStore()))

	results := make(chan result, len(codes))
	for _, code := range codes {
		db.FetchAsync(ctx, code, "", provider.Options{}, func(item bibitem.Item, err error) {
			results <- result{item, err}
		})
	}

	got := make(map[string]bool)
	for range codes {
		select {
		case r := <-results:
			require.NoError(t, r.err)
			got[bibitem.FirstID(r.item)] = true
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for async results")
		}
	}
	for _, code := range codes {
		require.True(t, got[code], code)
	}
	require.Equal(t, len(codes), iso.Calls())
	require.LessOrEqual(t, iso.MaxActive(), 3)
}

func TestFetchAsyncPreservesOrder(t *testing.T) {
	ctx := context.Background()
	iso := test.NewProvider(t, "ISO", provider.WithWorkers(1))
	codes := test.RandomCodes("ISO", 8)
	db := newDB(t, bibdb.WithRegistry(newRegistry(t, iso)))

	var wg sync.WaitGroup
	wg.Add(len(codes))
	for _, code := range codes {
		db.FetchAsync(ctx, code, "", provider.Options{}, func(bibitem.Item, error) {
			wg.Done()
		})
	}
	wg.Wait()
	require.Equal(t, codes, iso.Codes())
	require.Equal(t, 1, iso.MaxActive())
}

func TestFetchAsyncProvidersIsolated(t *testing.T) {
	ctx := context.Background()
	iso := test.NewProvider(t, "ISO", provider.WithWorkers(1))
	iec := test.NewProvider(t, "IEC", provider.WithWorkers(1))
	release := make(chan struct{})
	iso.FetchFunc = func(ctx context.Context, code, year string, opts provider.Options) (bibitem.Item, error) {
		<-release
		return nil, nil
	}
	db := newDB(t, bibdb.WithRegistry(newRegistry(t, iso, iec)))

	isoDone := make(chan struct{})
	db.FetchAsync(ctx, "ISO 1", "", provider.Options{}, func(bibitem.Item, error) {
		close(isoDone)
	})
	iecDone := make(chan struct{})
	db.FetchAsync(ctx, "IEC 1", "", provider.Options{}, func(bibitem.Item, error) {
		close(iecDone)
	})

	select {
	case <-iecDone:
	case <-time.After(5 * time.Second):
		t.Fatal("IEC lookup blocked by ISO lookup")
	}
	close(release)
	<-isoDone
}

func TestFetchAsyncErrors(t *testing.T) {
	ctx := context.Background()
	iso := test.NewProvider(t, "ISO")
	iso.FetchFunc = func(context.Context, string, string, provider.Options) (bibitem.Item, error) {
		return nil, test.Transient("ISO")
	}
	db, err := bibdb.New(bibdb.WithRegistry(newRegistry(t, iso)))
	require.NoError(t, err)

	var unknownErr error
	db.FetchAsync(ctx, "XYZ 1", "", provider.Options{}, func(_ bibitem.Item, err error) {
		unknownErr = err
	})
	var perr *provider.UnrecognizedPrefixError
	require.True(t, errors.As(unknownErr, &perr))

	done := make(chan error, 1)
	db.FetchAsync(ctx, "ISO 1", "", provider.Options{}, func(_ bibitem.Item, err error) {
		done <- err
	})
	require.True(t, provider.IsTransient(<-done))

	require.NoError(t, db.Close())
	var closedErr error
	db.FetchAsync(ctx, "ISO 1", "", provider.Options{}, func(_ bibitem.Item, err error) {
		closedErr = err
	})
	require.ErrorIs(t, closedErr, bibdb.ErrClosed)
}

func TestCloseDrainsQueue(t *testing.T) {
	ctx := context.Background()
	iso := test.NewProvider(t, "ISO", provider.WithWorkers(2))
	iso.Delay = 5 * time.Millisecond
	db, err := bibdb.New(bibdb.WithRegistry(newRegistry(t, iso)))
	require.NoError(t, err)

	var mu sync.Mutex
	var completed int
	codes := test.RandomCodes("ISO", 10)
	for _, code := range codes {
		db.FetchAsync(ctx, code, "", provider.Options{}, func(bibitem.Item, error) {
			mu.Lock()
			completed++
			mu.Unlock()
		})
	}
	require.NoError(t, db.Close())
	require.Equal(t, len(codes), completed)
}
