package parseutterance

import (
	"context"

	"nlu-engine/internal/common/logger"
	"nlu-engine/internal/models"
	"nlu-engine/internal/nlu/cache"
	"nlu-engine/internal/nlu/engine"
	"nlu-engine/internal/nlu/history"
	"nlu-engine/internal/workers/nlu"
)

// ServiceDependencies wires the engine and the optional cache and history.
type ServiceDependencies struct {
	Engine  *engine.Engine
	Cache   *cache.Cache
	History *history.Recorder
	Logger  logger.Logger
}

type Service struct {
	engine  *engine.Engine
	cache   *cache.Cache
	history *history.Recorder
	config  *Config
	logger  logger.Logger
}

func NewService(deps ServiceDependencies, cfg *Config) *Service {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Service{
		engine:  deps.Engine,
		cache:   deps.Cache,
		history: deps.History,
		config:  cfg,
		logger:  log,
	}
}

// Execute parses the utterance. Alternatives bypass the cache. A failed
// history write is logged and does not fail the parse.
func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	ref, err := nlu.ParseReference(input.ReferenceTime)
	if err != nil {
		return nil, err
	}
	q := engine.Query{
		Text:      input.Text,
		Whitelist: input.Whitelist,
		Blacklist: input.Blacklist,
		Reference: ref,
	}

	parseCtx, cancel := context.WithTimeout(ctx, s.config.ParseTimeout)
	defer cancel()

	output := &Output{}
	if n := s.alternatives(input.Alternatives); n > 0 {
		alts, err := nlu.Bounded(parseCtx, s.config.ParseTimeout, func() (models.ParseAlternatives, error) {
			return s.engine.ParseWithAlternatives(q, n)
		})
		if err != nil {
			return nil, err
		}
		output.Result = alts.ParseResult
		output.Alternatives = alts.Alternatives
	} else {
		result, err := nlu.Bounded(parseCtx, s.config.ParseTimeout, func() (models.ParseResult, error) {
			if s.cache != nil {
				return s.cache.Parse(parseCtx, q)
			}
			return s.engine.Parse(q)
		})
		if err != nil {
			return nil, err
		}
		output.Result = result
	}

	if s.history != nil {
		id, err := s.history.Record(ctx, output.Result)
		if err != nil {
			s.logger.Warn("Parse history not recorded", map[string]interface{}{
				"error":  err.Error(),
				"worker": TaskType,
			})
		} else {
			output.HistoryID = id.String()
		}
	}

	return output, nil
}

func (s *Service) alternatives(requested int) int {
	if requested > s.config.MaxAlternatives {
		return s.config.MaxAlternatives
	}
	return requested
}

// HealthCheck pings the cache when one is configured.
func (s *Service) HealthCheck(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Ping(ctx)
}
