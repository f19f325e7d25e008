package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/taljindergill78/FSE570/internal/circuitbreaker"
	"github.com/taljindergill78/FSE570/internal/config"
	"github.com/taljindergill78/FSE570/internal/orchestrator"
	"github.com/taljindergill78/FSE570/internal/resolver"
	"github.com/taljindergill78/FSE570/internal/sources"
	"github.com/taljindergill78/FSE570/internal/specialists"
	"github.com/taljindergill78/FSE570/internal/util"
)

// DefaultDispatchTable wires the corporate, legal and social graph agents.
// The corporate agent queries sourceIDs through gateway.
func DefaultDispatchTable(gateway specialists.EvidenceGateway, sourceIDs []string, logger *zap.Logger) orchestrator.DispatchTable {
	if logger == nil {
		logger = zap.NewNop()
	}
	return orchestrator.NewDispatchTable(
		specialists.NewCorporateAgent(gateway, sourceIDs, logger.Named("corporate")),
		specialists.NewLegalAgent(),
		specialists.NewSocialGraphAgent(),
	)
}

// Service is a fully wired investigator.
type Service struct {
	Config   *config.Config
	Registry *resolver.Registry
	Cache    sources.PayloadCache
	Gateway  *sources.Gateway
	Lead     *orchestrator.Lead
	Runner   *Runner
	// Redis is set when the payload cache is redis-backed.
	Redis *circuitbreaker.RedisWrapper
}

// BuildOptions overrides pieces of the wiring, mainly for tests.
type BuildOptions struct {
	HTTPClient *http.Client
	Registry   *resolver.Registry
}

// Build assembles the registry, payload cache, source gateway, agents, lead
// orchestrator and runner from cfg.
func Build(cfg *config.Config, opts BuildOptions, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &Service{Config: cfg, Registry: opts.Registry}

	if svc.Registry == nil {
		reg, err := LoadRegistry(cfg.Registry.File)
		if err != nil {
			return nil, err
		}
		svc.Registry = reg
	}

	switch cfg.Cache.Backend {
	case config.CacheBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		svc.Redis = circuitbreaker.NewRedisWrapper(client, "payload-cache", cfg.Cache.CircuitBreaker, logger)
		svc.Cache = sources.NewRedisCache(svc.Redis, cfg.Cache.Prefix, cfg.Cache.TTL)
	default:
		svc.Cache = sources.NewFileCache(cfg.DataRoot)
	}

	svc.Gateway = sources.NewDefaultGateway(SourceOptions(cfg, opts.HTTPClient), svc.Cache, logger.Named("sources"))
	table := DefaultDispatchTable(svc.Gateway, svc.Gateway.SourceIDs(), logger)
	svc.Lead = orchestrator.New(svc.Registry, table, orchestrator.Options{
		Parallel:       cfg.Dispatch.Parallel,
		MaxConcurrency: cfg.Dispatch.MaxConcurrency,
	}, logger.Named("lead"))
	svc.Runner = NewRunner(svc.Lead, logger.Named("pipeline"))

	logger.Info("Investigator assembled",
		zap.String("data_root", cfg.DataRoot),
		zap.String("cache_backend", svc.Cache.Backend()),
		zap.Strings("sources", svc.Gateway.SourceIDs()),
		zap.Int("entities", svc.Registry.Len()),
		zap.Bool("parallel_dispatch", cfg.Dispatch.Parallel),
	)
	return svc, nil
}

// LoadRegistry reads path, or returns the bundled registry when path is empty.
func LoadRegistry(path string) (*resolver.Registry, error) {
	if path == "" {
		return resolver.DefaultRegistry(), nil
	}
	list, err := resolver.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return resolver.NewRegistry(list), nil
}

// SourceOptions maps configuration onto the source gateway.
func SourceOptions(cfg *config.Config, client *http.Client) sources.Options {
	return sources.Options{
		Enabled: cfg.Sources.Enabled,
		SEC: sources.SECConfig{
			BaseURL:     cfg.Sources.SEC.BaseURL,
			ArchivesURL: cfg.Sources.SEC.ArchivesURL,
			UserAgent:   cfg.Sources.SEC.UserAgent,
			Forms:       cfg.Sources.SEC.Forms,
			MaxFilings:  cfg.Sources.SEC.MaxFilings,
		},
		NHTSA: sources.NHTSAConfig{
			BaseURL:  cfg.Sources.NHTSA.BaseURL,
			PageSize: cfg.Sources.NHTSA.PageSize,
		},
		HTTP: sources.FetcherConfig{
			Timeout:           cfg.HTTP.Timeout,
			RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
			Burst:             cfg.HTTP.Burst,
			Retries:           cfg.HTTP.Retries,
			Backoff:           cfg.HTTP.Backoff,
			Breaker:           cfg.HTTP.CircuitBreaker,
		},
		UserAgent: cfg.Sources.UserAgent,
		Client:    client,
	}
}

// ProcessedDir is where build-evidence writes CSVs under the data root.
func ProcessedDir(dataRoot string) string {
	return filepath.Join(dataRoot, "processed")
}

// EvidencePath is the CSV build-evidence writes for an entity.
func EvidencePath(dataRoot, entityID string) string {
	slug := util.Slug(entityID)
	return filepath.Join(ProcessedDir(dataRoot), slug, "evidence_"+slug+".csv")
}

// Ping checks the payload cache backend.
func (s *Service) Ping(ctx context.Context) error {
	if s.Redis != nil {
		if err := s.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis payload cache: %w", err)
		}
	}
	return nil
}

// Close releases backend connections.
func (s *Service) Close() error {
	if s.Redis != nil {
		return s.Redis.Close()
	}
	return nil
}
