package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-retryablehttp"
	logging "github.com/ipfs/go-log/v2"
	"github.com/relaton/go-relaton/apierror"
	"github.com/relaton/go-relaton/bibitem"
	"golang.org/x/time/rate"
)

var log = logging.Logger("provider")

// HTTPProvider fetches items from a web service that serves bibdata XML at
// <url>/<code>. The year and part selection are sent as query parameters.
//
// A 404 response means the document does not exist. Transport failures,
// throttling and server errors are returned as *TransientError. Any other
// status is returned as a non-transient *apierror.Error.
type HTTPProvider struct {
	Base

	url     *url.URL
	client  *http.Client
	header  http.Header
	limiter *rate.Limiter
}

var _ Provider = (*HTTPProvider)(nil)

// NewHTTPProvider creates a provider that fetches from srcURL.
func NewHTTPProvider(base Base, srcURL string, options ...HTTPOption) (*HTTPProvider, error) {
	opts, err := getHTTPOpts(options)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(srcURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("url must have http or https scheme: %s", srcURL)
	}

	client := opts.client
	if opts.timeout != 0 {
		c := *client
		c.Timeout = opts.timeout
		client = &c
	}
	if opts.retryMax != 0 {
		rclient := &retryablehttp.Client{
			HTTPClient:   client,
			RetryWaitMin: opts.retryWaitMin,
			RetryWaitMax: opts.retryWaitMax,
			RetryMax:     opts.retryMax,
			CheckRetry:   retryablehttp.DefaultRetryPolicy,
			Backoff:      retryablehttp.DefaultBackoff,
		}
		client = rclient.StandardClient()
	}

	p := &HTTPProvider{
		Base:   base,
		url:    u,
		client: client,
		header: opts.header,
	}
	if opts.rateLimit != 0 {
		p.limiter = rate.NewLimiter(rate.Limit(opts.rateLimit), opts.rateBurst)
	}
	return p, nil
}

func (p *HTTPProvider) Fetch(ctx context.Context, code, year string, opts Options) (bibitem.Item, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	u := p.url.JoinPath(url.PathEscape(code))
	q := u.Query()
	if year != "" {
		q.Set("year", year)
	}
	if opts.AllParts {
		q.Set("all_parts", "true")
	}
	if opts.KeepYear {
		q.Set("keep_year", "true")
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	for key, vals := range p.header {
		for _, val := range vals {
			req.Header.Add(key, val)
		}
	}
	req.Header.Add("Accept", "application/xml")

	resp, err := p.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &TransientError{Provider: p.Prefix(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Provider: p.Prefix(), Err: err}
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		log.Debugw("Document not found", "provider", p.Prefix(), "code", code)
		return nil, nil
	default:
		err = apierror.FromResponse(resp.StatusCode, body)
		var apierr *apierror.Error
		if errors.As(err, &apierr) && apierr.Temporary() {
			return nil, &TransientError{Provider: p.Prefix(), Err: err}
		}
		log.Warnw("Provider request failed", "provider", p.Prefix(), "code", code, "status", apierror.StatusOf(err))
		return nil, err
	}

	item, err := p.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Prefix(), err)
	}
	return item, nil
}

func (p *HTTPProvider) String() string {
	return p.url.String()
}
