package extractslots

import (
	"context"

	"nlu-engine/internal/common/logger"
	"nlu-engine/internal/models"
	"nlu-engine/internal/nlu/engine"
	"nlu-engine/internal/workers/nlu"
)

type Service struct {
	engine *engine.Engine
	config *Config
	logger logger.Logger
}

func NewService(e *engine.Engine, cfg *Config, log logger.Logger) *Service {
	return &Service{engine: e, config: cfg, logger: log}
}

func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	ref, err := nlu.ParseReference(input.ReferenceTime)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.ParseTimeout)
	defer cancel()

	if input.Slot != "" {
		slot, err := nlu.Bounded(ctx, s.config.ParseTimeout, func() (*models.Slot, error) {
			return s.engine.ExtractSlot(input.Text, input.Intent, input.Slot, ref)
		})
		if err != nil {
			return nil, err
		}
		return &Output{Single: slot, singleRun: true}, nil
	}

	slots, err := nlu.Bounded(ctx, s.config.ParseTimeout, func() ([]models.Slot, error) {
		return s.engine.GetSlots(engine.Query{Text: input.Text, Reference: ref}, input.Intent)
	})
	if err != nil {
		return nil, err
	}
	return &Output{Slots: slots}, nil
}
