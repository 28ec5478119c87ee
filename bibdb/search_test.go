package bibdb_test

import (
	"context"
	"testing"

	"github.com/relaton/go-relaton/bibdb"
	"github.com/relaton/go-relaton/bibitem"
	"github.com/relaton/go-relaton/dbcache"
	"github.com/relaton/go-relaton/internal/test"
	"github.com/relaton/go-relaton/provider"
	"github.com/stretchr/testify/require"
)

func ids(items []bibitem.Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = bibitem.FirstID(item)
	}
	return out
}

func TestFetchAll(t *testing.T) {
	ctx := context.Background()
	iso := test.NewProvider(t, "ISO")
	geo := test.NewItem("ISO 19115-1", "2014")
	geo.Title = "Geographic information"
	geo.EditionNumber = "1"
	iso.Add("ISO 19115-1", geo)
	dates := test.NewItem("ISO 8601-1", "2019")
	dates.Title = "Date and time"
	dates.EditionNumber = "1"
	iso.Add("ISO 8601-1", dates)

	static := test.NewStore()
	yml := []byte("docid:\n  - id: ISO 639\ntitle: Language codes\ndate:\n  - type: published\n    value: \"2023\"\nedition: \"2\"\n")
	require.NoError(t, static.Put(ctx, dbcache.DatastoreKey("ISO(ISO 639)"), yml))

	db := newDB(t, bibdb.WithRegistry(newRegistry(t, iso)),
		bibdb.WithStaticStore(static), bibdb.WithGlobalStore(test.NewStore()))
	for _, code := range []string{"ISO 19115-1", "ISO 8601-1", "ISO 404"} {
		_, err := db.Fetch(ctx, code, "", provider.Options{})
		require.NoError(t, err)
	}

	items, err := db.FetchAll(ctx, bibdb.Filter{})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"ISO 639", "ISO 19115-1", "ISO 8601-1"}, ids(items))

	items, err = db.FetchAll(ctx, bibdb.Filter{Text: "geographic"})
	require.NoError(t, err)
	require.Equal(t, []string{"ISO 19115-1"}, ids(items))

	items, err = db.FetchAll(ctx, bibdb.Filter{Text: "language"})
	require.NoError(t, err)
	require.Equal(t, []string{"ISO 639"}, ids(items))

	items, err = db.FetchAll(ctx, bibdb.Filter{Text: "docidentifier"})
	require.NoError(t, err)
	require.Empty(t, items, "tag names do not match")

	items, err = db.FetchAll(ctx, bibdb.Filter{Edition: "1", Year: "2019"})
	require.NoError(t, err)
	require.Equal(t, []string{"ISO 8601-1"}, ids(items))

	items, err = db.FetchAll(ctx, bibdb.Filter{Edition: "2"})
	require.NoError(t, err)
	require.Equal(t, []string{"ISO 639"}, ids(items))
}
