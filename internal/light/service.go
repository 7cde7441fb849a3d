package light

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceDeps holds the collaborators of a Service.
type ServiceDeps struct {
	Repo      Repository
	Messenger *Messenger
	Locks     *KeyedLocker
	Publisher Publisher

	// Confirmation defaults to ConfirmOptimistic.
	Confirmation Confirmation
	// AckTimeout applies in ConfirmAck mode. Defaults to DefaultAckTimeout.
	AckTimeout time.Duration
	// Acks is required in ConfirmAck mode and must be shared with the Reconciler.
	Acks *AckTracker

	// Optional.
	History   HistoryRepository
	Telemetry TelemetrySink
	Logger    Logger
}

// Service is the caller-facing half of the engine. Every mutation of a
// light runs under that light's lock, which the Reconciler shares.
type Service struct {
	repo         Repository
	messenger    *Messenger
	locks        *KeyedLocker
	notify       notifier
	recorder     stateRecorder
	history      HistoryRepository
	confirmation Confirmation
	ackTimeout   time.Duration
	acks         *AckTracker
	logger       Logger
}

// NewService creates a Service.
func NewService(deps ServiceDeps) *Service {
	logger := loggerOrNoop(deps.Logger)

	locks := deps.Locks
	if locks == nil {
		locks = &KeyedLocker{}
	}
	confirmation := deps.Confirmation
	if confirmation == "" {
		confirmation = ConfirmOptimistic
	}
	ackTimeout := deps.AckTimeout
	if ackTimeout <= 0 {
		ackTimeout = DefaultAckTimeout
	}
	acks := deps.Acks
	if confirmation == ConfirmAck && acks == nil {
		acks = NewAckTracker()
	}

	return &Service{
		repo:         deps.Repo,
		messenger:    deps.Messenger,
		locks:        locks,
		notify:       notifier{pub: deps.Publisher},
		recorder:     stateRecorder{history: deps.History, sink: deps.Telemetry, logger: logger},
		history:      deps.History,
		confirmation: confirmation,
		ackTimeout:   ackTimeout,
		acks:         acks,
		logger:       logger,
	}
}

// Confirmation returns the active confirmation mode.
func (s *Service) Confirmation() Confirmation {
	return s.confirmation
}

// FindByID returns a light with its state.
func (s *Service) FindByID(ctx context.Context, id string) (*Light, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// FindAll returns every light ordered by pos.
func (s *Service) FindAll(ctx context.Context) ([]Light, error) {
	return s.repo.List(ctx)
}

// FindStateByID returns the state of a light.
func (s *Service) FindStateByID(ctx context.Context, id string) (*LightState, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	return s.repo.GetState(ctx, id)
}

// History returns recorded state transitions of a light, newest first.
func (s *Service) History(ctx context.Context, id string, limit int) ([]StateHistoryEntry, error) {
	if _, err := s.FindByID(ctx, id); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []StateHistoryEntry{}, nil
	}
	return s.history.GetHistory(ctx, id, limit)
}

// AddLight creates a light with the default state and subscribes to it.
// A subscribe failure is logged; the light is picked up on the next reconnect.
func (s *Service) AddLight(ctx context.Context, id string, in LightInput) (*Light, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	if err := validationError(in.Validate(false)); err != nil {
		return nil, err
	}

	l, err := s.addLight(ctx, id, in)
	if err != nil {
		return nil, err
	}

	if err := s.messenger.Subscribe(ctx, id); err != nil {
		s.logger.Warn("subscribing new light failed", "light_id", id, "error", err)
	}

	s.logger.Info("light added", "light_id", id, "pos", l.Pos)
	s.notify.added(l)
	return l, nil
}

func (s *Service) addLight(ctx context.Context, id string, in LightInput) (*Light, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	if _, err := s.repo.GetByID(ctx, id); err == nil {
		return nil, ErrConflict
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	l := &Light{
		ID:    id,
		Name:  id,
		State: DefaultState(id),
	}
	if in.Name != nil {
		l.Name = *in.Name
	}
	if in.Pos != nil {
		l.Pos = *in.Pos
	}

	if err := s.repo.Create(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// RemoveLight deletes a light and its state and returns the light as it
// was before deletion. Unsubscribing is best effort.
func (s *Service) RemoveLight(ctx context.Context, id string) (*Light, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	snapshot, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.messenger.Unsubscribe(ctx, id); err != nil {
		s.logger.Warn("unsubscribing removed light failed", "light_id", id, "error", err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, err
	}

	s.logger.Info("light removed", "light_id", id)
	s.notify.removed(snapshot)
	return snapshot, nil
}

// UpdateLight merges the supplied metadata fields into the light.
func (s *Service) UpdateLight(ctx context.Context, id string, in LightInput) (*Light, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	if err := validationError(in.Validate(true)); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		l.Name = *in.Name
	}
	if in.Pos != nil {
		l.Pos = *in.Pos
	}

	if err := s.repo.Update(ctx, l); err != nil {
		return nil, err
	}

	s.notify.changed(l)
	return l, nil
}

// CommandLightState sends a desired-state change to the device and returns
// the resulting state. How the stored state follows depends on the
// confirmation mode.
func (s *Service) CommandLightState(ctx context.Context, id string, in LightStateInput) (*LightState, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	if in.IsEmpty() {
		return nil, fmt.Errorf("%w: state command changes nothing", ErrInvalidArgument)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	current, err := s.repo.GetState(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Connected {
		return nil, fmt.Errorf("%w: light %s is offline", ErrNotConnected, id)
	}

	payload := toPublishPayload(id, in, newMutationID())

	if s.confirmation == ConfirmAck {
		ch, cancel := s.acks.Register(payload.MutationID)
		defer cancel()

		if err := s.messenger.Publish(ctx, id, payload); err != nil {
			return nil, err
		}

		// The reconciler needs this light's lock to store the echoed state.
		unlock()

		confirmed, err := await(ctx, ch, s.ackTimeout)
		if err != nil {
			s.logger.Warn("light command not acknowledged",
				"light_id", id,
				"mutation_id", payload.MutationID,
				"error", err,
			)
			return nil, err
		}
		return &confirmed, nil
	}

	if err := s.messenger.Publish(ctx, id, payload); err != nil {
		return nil, err
	}

	next := current.Apply(in)
	if err := s.repo.UpdateState(ctx, next); err != nil {
		return nil, err
	}

	s.recorder.record(ctx, next, SourceCommand)
	s.notify.stateChanged(next)
	return &next, nil
}

// validateID rejects ids that cannot be used as a single topic level.
func validateID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: light id is required", ErrInvalidArgument)
	case len(id) > MaxNameLength:
		return fmt.Errorf("%w: light id longer than %d characters", ErrInvalidArgument, MaxNameLength)
	case strings.ContainsAny(id, "/+#"):
		return fmt.Errorf("%w: light id must not contain '/', '+' or '#'", ErrInvalidArgument)
	}
	return nil
}
