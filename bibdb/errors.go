package bibdb

import (
	"errors"

	"github.com/relaton/go-relaton/dbcache"
)

var (
	// ErrClosed is returned for lookups submitted after Close.
	ErrClosed = errors.New("bibliography database closed")
	// ErrRedirectCycle is returned when redirects in a cache tier loop.
	ErrRedirectCycle = dbcache.ErrRedirectCycle
)
