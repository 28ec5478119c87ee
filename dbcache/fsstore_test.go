package dbcache_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
	"github.com/relaton/go-relaton/dbcache"
	"github.com/stretchr/testify/require"
)

func TestFSStore(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "cache")
	s, err := dbcache.NewFSStore(root, "xml")
	require.NoError(t, err)

	key := datastore.NewKey("/iso/iso_1")
	_, err = s.Get(ctx, key)
	require.ErrorIs(t, err, datastore.ErrNotFound)

	require.NoError(t, s.Put(ctx, key, []byte("hello")))
	data, err := os.ReadFile(filepath.Join(root, "iso", "iso_1.xml"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))

	size, err := s.GetSize(ctx, key)
	require.NoError(t, err)
	require.Equal(t, 5, size)

	has, err := s.Has(ctx, key)
	require.NoError(t, err)
	require.True(t, has)
	has, err = s.Has(ctx, datastore.NewKey("/iso"))
	require.NoError(t, err)
	require.False(t, has, "namespace directory is not a value")

	require.NoError(t, s.Put(ctx, datastore.NewKey("/iec/iec_2"), []byte("world")))
	results, err := s.Query(ctx, query.Query{Prefix: "/iso"})
	require.NoError(t, err)
	entries, err := results.Rest()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "/iso/iso_1", entries[0].Key)
	require.Equal(t, "hello", string(entries[0].Value))

	results, err = s.Query(ctx, query.Query{KeysOnly: true})
	require.NoError(t, err)
	entries, err = results.Rest()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	results, err = s.Query(ctx, query.Query{Prefix: "/missing"})
	require.NoError(t, err)
	entries, err = results.Rest()
	require.NoError(t, err)
	require.Empty(t, entries)

	require.NoError(t, s.Delete(ctx, key))
	require.NoError(t, s.Delete(ctx, key))
	_, err = s.GetSize(ctx, key)
	require.ErrorIs(t, err, datastore.ErrNotFound)
}

func TestOpenMove(t *testing.T) {
	ctx := context.Background()
	tmp := t.TempDir()
	dir := filepath.Join(tmp, "global")
	c, err := dbcache.Open(dir)
	require.NoError(t, err)
	require.Equal(t, dir, c.Dir())
	require.NoError(t, c.Set(ctx, isoKey, payload("2024-01-01")))

	taken := filepath.Join(tmp, "taken")
	require.NoError(t, os.Mkdir(taken, 0o755))
	require.NoError(t, c.Move(taken))
	require.Equal(t, dir, c.Dir(), "existing target is left alone")

	newDir := filepath.Join(tmp, "sub", "moved")
	require.NoError(t, c.Move(newDir))
	require.Equal(t, newDir, c.Dir())
	_, err = os.Stat(dir)
	require.True(t, os.IsNotExist(err))

	e, ok, err := c.Get(ctx, isoKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, payload("2024-01-01"), e)
	require.NoError(t, c.Close())
}

func TestFSStoreExtensions(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := dbcache.NewFSStore(root, ".yml")
	require.NoError(t, err)
	key := datastore.NewKey("/iso/iso_639")

	require.NoError(t, s.Put(ctx, key, []byte("not_found 2024-01-01")))
	require.FileExists(t, filepath.Join(root, "iso", "iso_639.notfound"))
	data, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "not_found 2024-01-01", string(data))

	require.NoError(t, s.Put(ctx, key, []byte("docid: ISO 639")))
	require.FileExists(t, filepath.Join(root, "iso", "iso_639.yml"))
	require.NoFileExists(t, filepath.Join(root, "iso", "iso_639.notfound"), "replaced value is removed")

	require.NoError(t, s.Put(ctx, datastore.NewKey("/iso/iso_1"), []byte("redirection ISO(ISO 639)")))
	require.FileExists(t, filepath.Join(root, "iso", "iso_1.redirect"))
	require.NoError(t, s.Put(ctx, datastore.NewKey("/iso/version"), []byte("abc")))
	require.FileExists(t, filepath.Join(root, "iso", "version"))

	require.NoError(t, os.WriteFile(filepath.Join(root, "iso", "README.md"), []byte("ignored"), 0o644))

	results, err := s.Query(ctx, query.Query{Prefix: "/iso", Orders: []query.Order{query.OrderByKey{}}})
	require.NoError(t, err)
	entries, err := results.Rest()
	require.NoError(t, err)
	var keys []string
	for _, ent := range entries {
		keys = append(keys, ent.Key)
	}
	require.Equal(t, []string{"/iso/iso_1", "/iso/iso_639", "/iso/version"}, keys)

	require.NoError(t, s.Delete(ctx, key))
	require.NoFileExists(t, filepath.Join(root, "iso", "iso_639.yml"))
	has, err := s.Has(ctx, key)
	require.NoError(t, err)
	require.False(t, has)
}

func TestFSStoreQueryIsLazy(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	root := t.TempDir()
	s, err := dbcache.NewFSStore(root, "xml")
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, datastore.NewKey("/iso/iso_1"), []byte("one")))
	require.NoError(t, s.Put(ctx, datastore.NewKey("/iso/iso_2"), []byte("two")))

	results, err := s.Query(ctx, query.Query{})
	require.NoError(t, err)
	defer results.Close()

	// Files written after the query are seen, since nothing is read up front.
	require.NoError(t, s.Put(ctx, datastore.NewKey("/iec/iec_1"), []byte("three")))
	var n int
	for {
		r, ok := results.NextSync()
		if !ok {
			break
		}
		require.NoError(t, r.Error)
		n++
	}
	require.Equal(t, 3, n)

	results, err = s.Query(ctx, query.Query{})
	require.NoError(t, err)
	cancel()
	r, ok := results.NextSync()
	require.True(t, ok)
	require.ErrorIs(t, r.Error, context.Canceled)
}
