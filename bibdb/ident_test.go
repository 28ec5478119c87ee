package bibdb_test

import (
	"testing"

	"github.com/relaton/go-relaton/bibdb"
	"github.com/relaton/go-relaton/internal/test"
	"github.com/relaton/go-relaton/provider"
	"github.com/stretchr/testify/require"
)

func TestStdID(t *testing.T) {
	iso := test.NewProvider(t, "ISO")
	gb := test.NewProvider(t, "GB", provider.WithYearSeparator("-"))

	cases := []struct {
		code     string
		year     string
		opts     provider.Options
		p        provider.Provider
		wantID   string
		wantCode string
	}{
		{"ISO 19115-1", "", provider.Options{}, iso, "ISO(ISO 19115-1)", "ISO 19115-1"},
		{"ISO 19115-1", "2014", provider.Options{}, iso, "ISO(ISO 19115-1:2014)", "ISO 19115-1"},
		{"ISO 8601", "", provider.Options{AllParts: true}, iso, "ISO(ISO 8601 (all parts))", "ISO 8601"},
		{"ISO 8601", "2019", provider.Options{AllParts: true}, iso, "ISO(ISO 8601:2019 (all parts))", "ISO 8601"},
		{"ISO(ISO 19115-1)", "", provider.Options{}, iso, "ISO(ISO 19115-1)", "ISO 19115-1"},
		{"ISO 19115–1", "", provider.Options{}, iso, "ISO(ISO 19115-1)", "ISO 19115-1"},
		{"GB/T 20223", "2006", provider.Options{}, gb, "GB(GB/T 20223-2006)", "GB/T 20223"},
		{" ISO 1 ", "", provider.Options{}, iso, "ISO(ISO 1)", " ISO 1 "},
	}
	for _, c := range cases {
		id, code := bibdb.StdID(c.code, c.year, c.opts, c.p)
		require.Equal(t, c.wantID, id, c.code)
		require.Equal(t, c.wantCode, code, c.code)
	}
}

func TestStripIDWrapper(t *testing.T) {
	require.Equal(t, "ISO 1", bibdb.StripIDWrapper("ISO(ISO 1)", "ISO"))
	require.Equal(t, "ISO()", bibdb.StripIDWrapper("ISO()", "ISO"))
	require.Equal(t, "iso(ISO 1)", bibdb.StripIDWrapper("iso(ISO 1)", "ISO"))
	require.Equal(t, "A-B–C", bibdb.StripIDWrapper("A–B–C", "ISO"))
}
