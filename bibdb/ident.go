package bibdb

import (
	"strings"

	"github.com/relaton/go-relaton/provider"
)

const allPartsSuffix = " (all parts)"

// stdID returns the canonical cache key of a lookup and the code to send to
// the provider. The key has the form PREFIX(code[<sep>year][ (all parts)]),
// where the separator comes from the provider.
func stdID(code, year string, opts provider.Options, p provider.Provider) (string, string) {
	code = stripIDWrapper(code, p.Prefix())
	ret := code
	if year != "" {
		ret += p.YearSeparator() + year
	}
	if opts.AllParts {
		ret += allPartsSuffix
	}
	return p.Prefix() + "(" + strings.TrimSpace(ret) + ")", code
}

// stripIDWrapper replaces an en dash with a hyphen and removes a
// PREFIX(...) wrapper from code.
func stripIDWrapper(code, prefix string) string {
	code = strings.Replace(code, "–", "-", 1)
	if len(code) > len(prefix)+2 &&
		strings.HasPrefix(code, prefix+"(") && strings.HasSuffix(code, ")") {
		return code[len(prefix)+1 : len(code)-1]
	}
	return code
}
