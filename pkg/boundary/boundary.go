// Package boundary exposes the engine through opaque handles and status
// codes, for hosts that cannot hold Go values. Every resource handed out
// must be released with the matching Destroy call; releasing twice or
// releasing an unknown handle is a no-op.
package boundary

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"nlu-engine/internal/common/errors"
	"nlu-engine/internal/common/logger"
	"nlu-engine/internal/models"
	"nlu-engine/internal/nlu/engine"
	"nlu-engine/internal/nlu/modelstore"
)

// Handle names a resource owned by a Shim. The zero Handle is never issued.
type Handle uuid.UUID

var NilHandle = Handle(uuid.Nil)

func (h Handle) String() string {
	return uuid.UUID(h).String()
}

// Shim owns every resource it hands out. It is safe for concurrent use.
type Shim struct {
	mu      sync.RWMutex
	clients map[Handle]*engine.Engine
	results map[Handle]models.ParseResult
	slots   map[Handle][]models.Slot
	intents map[Handle][]models.IntentClassificationResult
	strings map[Handle]string

	logger  logger.Logger
	options []engine.Option
}

// New returns an empty Shim. opts apply to every engine it creates.
func New(log logger.Logger, opts ...engine.Option) *Shim {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Shim{
		clients: make(map[Handle]*engine.Engine),
		results: make(map[Handle]models.ParseResult),
		slots:   make(map[Handle][]models.Slot),
		intents: make(map[Handle][]models.IntentClassificationResult),
		strings: make(map[Handle]string),
		logger:  log.Named("boundary"),
		options: append([]engine.Option{engine.WithLogger(log)}, opts...),
	}
}

// guard runs fn and records its error, or a recovered panic, on ch.
func (s *Shim) guard(ch *Channel, op string, fn func() error) (status Status) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Recovered panic at boundary", map[string]interface{}{
				"operation": op,
				"panic":     fmt.Sprint(r),
			})
			status = ch.set(errors.NewInternalError(fmt.Errorf("%s: panic: %v", op, r)))
		}
	}()
	if err := fn(); err != nil {
		return ch.set(err)
	}
	return StatusOK
}

func newHandle() Handle {
	return Handle(uuid.New())
}

// ==========================
// Clients
// ==========================

func (s *Shim) CreateFromDir(ch *Channel, dir string) (Handle, Status) {
	return s.create(ch, "create-from-dir", func() (*modelstore.Model, error) {
		return modelstore.LoadDir(dir)
	})
}

func (s *Shim) CreateFromArchive(ch *Channel, archive []byte) (Handle, Status) {
	return s.create(ch, "create-from-archive", func() (*modelstore.Model, error) {
		return modelstore.LoadArchive(archive)
	})
}

func (s *Shim) CreateFromFile(ch *Channel, path string) (Handle, Status) {
	return s.create(ch, "create-from-file", func() (*modelstore.Model, error) {
		return modelstore.LoadFile(path)
	})
}

func (s *Shim) create(ch *Channel, op string, load func() (*modelstore.Model, error)) (Handle, Status) {
	h := NilHandle
	status := s.guard(ch, op, func() error {
		model, err := load()
		if err != nil {
			return err
		}
		e, err := engine.New(model, s.options...)
		if err != nil {
			return err
		}
		h = newHandle()
		s.mu.Lock()
		s.clients[h] = e
		s.mu.Unlock()
		return nil
	})
	return h, status
}

func (s *Shim) client(h Handle) (*engine.Engine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.clients[h]
	if !ok {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("unknown engine handle %s", h))
	}
	return e, nil
}

// DestroyClient releases an engine. Queries already running on it finish
// normally.
func (s *Shim) DestroyClient(h Handle) Status {
	s.mu.Lock()
	delete(s.clients, h)
	s.mu.Unlock()
	return StatusOK
}

// ==========================
// Queries
// ==========================

// GetModelVersion returns a string handle holding the newest model version
// this engine loads.
func (s *Shim) GetModelVersion(ch *Channel) (Handle, Status) {
	return s.putString(ch, "get-model-version", func() (string, error) {
		return modelstore.GetModelVersion(), nil
	})
}

func (s *Shim) RunParse(ch *Channel, client Handle, text string, whitelist, blacklist []string) (Handle, Status) {
	h := NilHandle
	status := s.guard(ch, "run-parse", func() error {
		e, err := s.client(client)
		if err != nil {
			return err
		}
		result, err := e.Parse(engine.Query{Text: text, Whitelist: whitelist, Blacklist: blacklist})
		if err != nil {
			return err
		}
		h = newHandle()
		s.mu.Lock()
		s.results[h] = result
		s.mu.Unlock()
		return nil
	})
	return h, status
}

// RunParseAsJSON parses and returns a string handle holding the result as JSON.
func (s *Shim) RunParseAsJSON(ch *Channel, client Handle, text string, whitelist, blacklist []string) (Handle, Status) {
	return s.putString(ch, "run-parse-as-json", func() (string, error) {
		e, err := s.client(client)
		if err != nil {
			return "", err
		}
		result, err := e.Parse(engine.Query{Text: text, Whitelist: whitelist, Blacklist: blacklist})
		if err != nil {
			return "", err
		}
		doc, err := json.Marshal(result)
		if err != nil {
			return "", errors.NewInternalError(err)
		}
		return string(doc), nil
	})
}

func (s *Shim) RunGetIntents(ch *Channel, client Handle, text string) (Handle, Status) {
	h := NilHandle
	status := s.guard(ch, "run-get-intents", func() error {
		e, err := s.client(client)
		if err != nil {
			return err
		}
		ranking, err := e.GetIntents(engine.Query{Text: text})
		if err != nil {
			return err
		}
		h = newHandle()
		s.mu.Lock()
		s.intents[h] = ranking
		s.mu.Unlock()
		return nil
	})
	return h, status
}

func (s *Shim) RunGetSlots(ch *Channel, client Handle, text, intent string) (Handle, Status) {
	h := NilHandle
	status := s.guard(ch, "run-get-slots", func() error {
		e, err := s.client(client)
		if err != nil {
			return err
		}
		slots, err := e.GetSlots(engine.Query{Text: text}, intent)
		if err != nil {
			return err
		}
		h = newHandle()
		s.mu.Lock()
		s.slots[h] = slots
		s.mu.Unlock()
		return nil
	})
	return h, status
}

func (s *Shim) putString(ch *Channel, op string, fn func() (string, error)) (Handle, Status) {
	h := NilHandle
	status := s.guard(ch, op, func() error {
		v, err := fn()
		if err != nil {
			return err
		}
		h = newHandle()
		s.mu.Lock()
		s.strings[h] = v
		s.mu.Unlock()
		return nil
	})
	return h, status
}

// ==========================
// Accessors
// ==========================

func (s *Shim) Result(h Handle) (models.ParseResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[h]
	return r, ok
}

func (s *Shim) Slots(h Handle) ([]models.Slot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.slots[h]
	return v, ok
}

func (s *Shim) Intents(h Handle) ([]models.IntentClassificationResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.intents[h]
	return v, ok
}

func (s *Shim) StringValue(h Handle) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.strings[h]
	return v, ok
}

// ==========================
// Release
// ==========================

func (s *Shim) DestroyResult(h Handle) Status {
	s.mu.Lock()
	delete(s.results, h)
	s.mu.Unlock()
	return StatusOK
}

func (s *Shim) DestroySlots(h Handle) Status {
	s.mu.Lock()
	delete(s.slots, h)
	s.mu.Unlock()
	return StatusOK
}

func (s *Shim) DestroyIntents(h Handle) Status {
	s.mu.Lock()
	delete(s.intents, h)
	s.mu.Unlock()
	return StatusOK
}

func (s *Shim) DestroyString(h Handle) Status {
	s.mu.Lock()
	delete(s.strings, h)
	s.mu.Unlock()
	return StatusOK
}

// Live counts the resources not yet released.
func (s *Shim) Live() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients) + len(s.results) + len(s.slots) + len(s.intents) + len(s.strings)
}
