package sources

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Options assembles the bundled processors.
type Options struct {
	// Enabled limits which processors are registered; empty registers all.
	Enabled []string
	SEC     SECConfig
	NHTSA   NHTSAConfig
	// HTTP is the per-source fetcher template; Name and UserAgent are filled in.
	HTTP      FetcherConfig
	UserAgent string
	// Client overrides the HTTP client (tests).
	Client *http.Client
}

// NewDefaultGateway registers the SEC EDGAR and NHTSA processors over cache.
// Each source gets its own fetcher so one upstream's breaker and rate limit
// never throttle another.
func NewDefaultGateway(opts Options, cache PayloadCache, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	enabled := func(id string) bool {
		if len(opts.Enabled) == 0 {
			return true
		}
		for _, e := range opts.Enabled {
			if strings.EqualFold(strings.TrimSpace(e), id) {
				return true
			}
		}
		return false
	}

	g := NewGateway(logger)
	if enabled(SourceSECEdgar) {
		fc := opts.HTTP
		fc.Name = SourceSECEdgar
		fc.UserAgent = opts.SEC.UserAgent
		g.Register(NewSECProcessor(opts.SEC, cache, NewHTTPFetcher(fc, opts.Client, logger), logger))
	}
	if enabled(SourceNHTSA) {
		fc := opts.HTTP
		fc.Name = SourceNHTSA
		fc.UserAgent = opts.UserAgent
		g.Register(NewNHTSAProcessor(opts.NHTSA, cache, NewHTTPFetcher(fc, opts.Client, logger), logger))
	}
	return g
}
