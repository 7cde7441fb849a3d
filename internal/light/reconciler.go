package light

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// maxQueuedMessages bounds inbound device messages waiting for the worker.
// Connectivity events are never dropped.
const maxQueuedMessages = 1024

// resubscribeTimeout bounds each per-light subscribe after a reconnect.
const resubscribeTimeout = 10 * time.Second

// ReconcilerDeps holds the collaborators of a Reconciler.
type ReconcilerDeps struct {
	Repo      Repository
	Messenger *Messenger
	Locks     *KeyedLocker
	Publisher Publisher

	// Optional.
	History   HistoryRepository
	Telemetry TelemetrySink
	Acks      *AckTracker
	Logger    Logger
}

// Reconciler consumes the Messenger's events. It resubscribes every light
// on connect, marks every light disconnected when the broker drops, and
// merges device telemetry into storage. Events are handled in arrival order
// by a single worker; resubscriptions run in their own goroutines.
type Reconciler struct {
	repo      Repository
	messenger *Messenger
	locks     *KeyedLocker
	notify    notifier
	recorder  stateRecorder
	acks      *AckTracker
	logger    Logger

	mu      sync.Mutex
	queue   []reconcileEvent
	pending int // queued device messages
	wake    chan struct{}

	received atomic.Uint64
	handled  atomic.Uint64

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

type reconcileEventKind int

const (
	eventConnected reconcileEventKind = iota
	eventDisconnected
	eventMessage
)

type reconcileEvent struct {
	kind reconcileEventKind
	msg  Message
}

// NewReconciler creates a Reconciler and registers it as the Messenger's listener.
func NewReconciler(deps ReconcilerDeps) *Reconciler {
	logger := loggerOrNoop(deps.Logger)
	locks := deps.Locks
	if locks == nil {
		locks = &KeyedLocker{}
	}

	r := &Reconciler{
		repo:      deps.Repo,
		messenger: deps.Messenger,
		locks:     locks,
		notify:    notifier{pub: deps.Publisher},
		recorder:  stateRecorder{history: deps.History, sink: deps.Telemetry, logger: logger},
		acks:      deps.Acks,
		logger:    logger,
		wake:      make(chan struct{}, 1),
	}
	deps.Messenger.SetListener(r)
	return r
}

// Start launches the worker. If the broker is already connected the
// initial subscription pass is queued immediately.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run()

	if r.messenger.IsConnected() {
		r.OnConnected()
	}
}

// Stop cancels in-flight work and waits for every goroutine to exit.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

// Backlog returns the number of queued events not yet handled.
func (r *Reconciler) Backlog() uint64 {
	return r.received.Load() - r.handled.Load()
}

// OnConnected implements Listener.
func (r *Reconciler) OnConnected() {
	r.enqueue(reconcileEvent{kind: eventConnected})
}

// OnDisconnected implements Listener.
func (r *Reconciler) OnDisconnected() {
	r.enqueue(reconcileEvent{kind: eventDisconnected})
}

// OnMessage implements Listener.
func (r *Reconciler) OnMessage(msg Message) {
	r.enqueue(reconcileEvent{kind: eventMessage, msg: msg})
}

func (r *Reconciler) enqueue(ev reconcileEvent) {
	r.mu.Lock()
	if ev.kind == eventMessage {
		if r.pending >= maxQueuedMessages {
			r.mu.Unlock()
			r.logger.Warn("reconciler queue full, dropping device message",
				"light_id", ev.msg.LightID,
				"kind", string(ev.msg.Kind),
			)
			return
		}
		r.pending++
	}
	r.queue = append(r.queue, ev)
	r.received.Add(1)
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Reconciler) drain() []reconcileEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	batch := r.queue
	r.queue = nil
	r.pending = 0
	return batch
}

func (r *Reconciler) run() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.wake:
		}

		for _, ev := range r.drain() {
			if r.ctx.Err() != nil {
				return
			}
			switch ev.kind {
			case eventConnected:
				r.handleConnected(r.ctx)
			case eventDisconnected:
				r.handleDisconnected(r.ctx)
			case eventMessage:
				r.handleMessage(r.ctx, ev.msg)
			}
			r.handled.Add(1)
		}
	}
}

// handleConnected subscribes every known light without waiting for the
// results. One light failing does not affect the others.
func (r *Reconciler) handleConnected(ctx context.Context) {
	ids, err := r.repo.ListIDs(ctx)
	if err != nil {
		r.logger.Error("listing lights for resubscribe failed", "error", err)
		return
	}

	r.logger.Info("resubscribing lights", "count", len(ids))
	for _, id := range ids {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			subCtx, cancel := context.WithTimeout(ctx, resubscribeTimeout)
			defer cancel()
			if err := r.messenger.Subscribe(subCtx, id); err != nil {
				r.logger.Warn("resubscribing light failed", "light_id", id, "error", err)
			}
		}()
	}
}

// handleDisconnected forces connected=false on every light. Nothing is sent
// to the devices.
func (r *Reconciler) handleDisconnected(ctx context.Context) {
	ids, err := r.repo.ListIDs(ctx)
	if err != nil {
		r.logger.Error("listing lights for disconnect failed", "error", err)
		return
	}

	for _, id := range ids {
		_, err := r.mergeState(ctx, id, SourceDisconnect, func(s LightState) LightState {
			s.Connected = false
			return s
		})
		if err != nil && !errors.Is(err, ErrNotFound) {
			r.logger.Warn("marking light disconnected failed", "light_id", id, "error", err)
		}
	}
}

func (r *Reconciler) handleMessage(ctx context.Context, msg Message) {
	var err error
	switch p := msg.Payload.(type) {
	case *ConnectionPayload:
		_, err = r.mergeState(ctx, msg.LightID, SourceMQTT, func(s LightState) LightState {
			s.Connected = p.Online()
			return s
		})

	case *StatePayload:
		var s LightState
		s, err = r.mergeState(ctx, msg.LightID, SourceMQTT, func(s LightState) LightState {
			return s.ApplyTelemetry(p)
		})
		if err == nil && p.MutationID != nil && r.acks != nil {
			r.acks.Resolve(*p.MutationID, s)
		}

	case *EffectListPayload:
		err = r.mergeLight(ctx, msg.LightID, func(l *Light) {
			l.SupportedEffects = slices.Clone(p.EffectList)
		})

	case *ConfigPayload:
		err = r.mergeLight(ctx, msg.LightID, func(l *Light) {
			l.ApplyConfig(p)
		})

	default:
		r.logger.Error("unexpected device payload", "light_id", msg.LightID, "kind", string(msg.Kind))
		return
	}

	switch {
	case errors.Is(err, ErrNotFound):
		r.logger.Debug("dropping message for unknown light", "light_id", msg.LightID, "kind", string(msg.Kind))
	case err != nil:
		r.logger.Error("applying device message failed", "light_id", msg.LightID, "kind", string(msg.Kind), "error", err)
	}
}

// mergeState is the single read-merge-write path for light state. It is
// shared with the service through the keyed lock.
func (r *Reconciler) mergeState(ctx context.Context, id, source string, merge func(LightState) LightState) (LightState, error) {
	unlock := r.locks.Lock(id)
	defer unlock()

	current, err := r.repo.GetState(ctx, id)
	if err != nil {
		return LightState{}, err
	}

	next := merge(*current)
	if err := r.repo.UpdateState(ctx, next); err != nil {
		return LightState{}, err
	}

	r.recorder.record(ctx, next, source)
	r.notify.stateChanged(next)
	return next, nil
}

func (r *Reconciler) mergeLight(ctx context.Context, id string, merge func(*Light)) error {
	unlock := r.locks.Lock(id)
	defer unlock()

	l, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	merge(l)
	if err := r.repo.Update(ctx, l); err != nil {
		return err
	}

	r.notify.changed(l)
	return nil
}
