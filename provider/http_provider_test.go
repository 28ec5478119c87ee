package provider_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/relaton/go-relaton/apierror"
	"github.com/relaton/go-relaton/bibitem"
	"github.com/relaton/go-relaton/provider"
	"github.com/stretchr/testify/require"
)

const isoDoc = `<bibdata><docidentifier type="ISO" primary="true">ISO 19115-1:2014</docidentifier><date type="published"><on>2014-04</on></date></bibdata>`

func newHTTPProvider(t *testing.T, url string, options ...provider.HTTPOption) *provider.HTTPProvider {
	base, err := provider.NewBase("ISO")
	require.NoError(t, err)
	p, err := provider.NewHTTPProvider(base, url, options...)
	require.NoError(t, err)
	return p
}

func TestHTTPProviderFetch(t *testing.T) {
	var gotPath, gotYear, gotAllParts, gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotYear = r.URL.Query().Get("year")
		gotAllParts = r.URL.Query().Get("all_parts")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(isoDoc))
	}))
	defer ts.Close()

	p := newHTTPProvider(t, ts.URL+"/api", provider.WithHeader("Authorization", "Bearer x"))
	item, err := p.Fetch(context.Background(), "ISO 19115-1", "2014", provider.Options{AllParts: true})
	require.NoError(t, err)
	require.Equal(t, "ISO 19115-1:2014", bibitem.FirstID(item))
	require.Equal(t, "/api/ISO 19115-1", gotPath)
	require.Equal(t, "2014", gotYear)
	require.Equal(t, "true", gotAllParts)
	require.Equal(t, "Bearer x", gotAuth)
}

func TestHTTPProviderNotFound(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	p := newHTTPProvider(t, ts.URL)
	item, err := p.Fetch(context.Background(), "ISO 1", "", provider.Options{})
	require.NoError(t, err)
	require.Nil(t, item)
}

func TestHTTPProviderErrors(t *testing.T) {
	status := http.StatusServiceUnavailable
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "try later", status)
	}))
	defer ts.Close()

	p := newHTTPProvider(t, ts.URL)
	_, err := p.Fetch(context.Background(), "ISO 1", "", provider.Options{})
	require.True(t, provider.IsTransient(err))
	require.Equal(t, http.StatusServiceUnavailable, apierror.StatusOf(err))

	status = http.StatusBadRequest
	_, err = p.Fetch(context.Background(), "ISO 1", "", provider.Options{})
	require.Error(t, err)
	require.False(t, provider.IsTransient(err))
	require.Equal(t, http.StatusBadRequest, apierror.StatusOf(err))
}

func TestHTTPProviderTransportError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	p := newHTTPProvider(t, url)
	_, err := p.Fetch(context.Background(), "ISO 1", "", provider.Options{})
	require.True(t, provider.IsTransient(err))

	var terr *provider.TransientError
	require.True(t, errors.As(err, &terr))
	require.Equal(t, "ISO", terr.Provider)
}

func TestHTTPProviderRetries(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(isoDoc))
	}))
	defer ts.Close()

	p := newHTTPProvider(t, ts.URL, provider.WithHTTPRetries(3, time.Millisecond, 5*time.Millisecond))
	item, err := p.Fetch(context.Background(), "ISO 19115-1", "", provider.Options{})
	require.NoError(t, err)
	require.NotNil(t, item)
	require.Equal(t, int32(3), calls.Load())
}

func TestHTTPProviderRateLimitHonorsContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(isoDoc))
	}))
	defer ts.Close()

	p := newHTTPProvider(t, ts.URL, provider.WithRateLimit(0.001, 1))
	_, err := p.Fetch(context.Background(), "ISO 1", "", provider.Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Fetch(ctx, "ISO 1", "", provider.Options{})
	require.Error(t, err)
	require.False(t, provider.IsTransient(err))
}

func TestNewHTTPProviderBadURL(t *testing.T) {
	base, err := provider.NewBase("ISO")
	require.NoError(t, err)
	_, err = provider.NewHTTPProvider(base, "ftp://example.com")
	require.ErrorContains(t, err, "http or https")

	_, err = provider.NewHTTPProvider(base, "http://example.com", provider.WithRateLimit(0, 1))
	require.ErrorContains(t, err, "option 0 failed")
}
