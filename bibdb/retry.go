package bibdb

import (
	"context"

	"github.com/relaton/go-relaton/apierror"
	"github.com/relaton/go-relaton/bibitem"
	"github.com/relaton/go-relaton/provider"
)

// fetchWithRetry calls the provider up to attempts times, repeating only
// after transient failures. The last transient error is returned when all
// attempts fail. Other errors are returned at once.
func fetchWithRetry(ctx context.Context, code, year string, opts provider.Options, p provider.Provider, attempts int) (bibitem.Item, error) {
	if attempts < 1 {
		attempts = 1
	}
	for {
		providerFetches.WithLabelValues(p.Prefix()).Inc()
		item, err := p.Fetch(ctx, code, year, opts)
		if err == nil || !provider.IsTransient(err) {
			return item, err
		}
		attempts--
		if attempts < 1 || ctx.Err() != nil {
			log.Errorw("Provider fetch failed", "provider", p.Prefix(), "code", code, "status", apierror.StatusOf(err), "err", err)
			return nil, err
		}
		providerRetries.WithLabelValues(p.Prefix()).Inc()
		log.Debugw("Retrying provider fetch", "provider", p.Prefix(), "code", code, "remaining", attempts, "err", err)
	}
}
