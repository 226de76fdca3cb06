// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package engine assembles the matchmaking loop: record store, membership
// manager, cooldown scheduler and the single-writer dispatcher, wired from
// configuration. Callers submit actions and consume events; the engine owns
// everything in between.
package engine

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/AccelByte/extend-queue-matchmaker/pkg/balance"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/common"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/config"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/dispatcher"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/mailbox"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/metrics"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/models"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/queue"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/rating"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/store"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/store/memstore"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/store/redisstore"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/waitlist"
)

// Options override parts of the default wiring. Zero values select defaults.
type Options struct {
	// Store overrides the record store. Default: redis when REDIS_ADDR is
	// set in the environment, in-memory otherwise.
	Store store.RecordStore
	// Source overrides the skill model. Default: gaussian estimates with no
	// stored ratings, so every player starts at the default skill.
	Source rating.Source
	// Strategy overrides the balance strategy. Default: randomized sampling
	// with the configured trial count.
	Strategy balance.Strategy
	// Registry enables prometheus metrics when set.
	Registry *prometheus.Registry
	// EventBuffer sizes the outbound event channel.
	EventBuffer int
}

// Engine is the assembled matchmaking loop. The exported components are for
// wiring and inspection; the store and the mutating Manager methods
// (CreateQueue, UpdateQueue, DeleteQueue, Join, Leave) share the dispatcher's
// single-writer model and must only be called from the dispatcher context:
// before Run starts, or from the goroutine driving RunOnce. Submit, Events
// and Status are safe from any goroutine.
type Engine struct {
	Store    store.RecordStore
	Manager  *queue.Manager
	Waitlist *waitlist.Scheduler
	Notifier *queue.BufferedNotifier

	provider   config.Provider
	box        *mailbox.Mailbox
	dispatcher *dispatcher.Dispatcher
}

func New(provider config.Provider, opts Options) *Engine {
	cfg := provider.Snapshot()

	recordStore := opts.Store
	if recordStore == nil {
		recordStore = defaultStore()
	}
	source := opts.Source
	if source == nil {
		source = rating.NewGaussianSource(nil)
	}
	strategy := opts.Strategy
	if strategy == nil {
		if cfg.BalanceStrategy == "exhaustive" {
			strategy = balance.NewExhaustiveStrategy(cfg.ExhaustiveSplitLimit)
		} else {
			strategy = balance.NewRandomizedStrategy(cfg.BalanceTrialCount, common.NewSeededRand())
		}
	}
	queueMetrics := metrics.NewNopMetrics()
	if opts.Registry != nil {
		queueMetrics = metrics.NewMetrics(opts.Registry)
	}

	box := mailbox.New()
	notifier := queue.NewBufferedNotifier(opts.EventBuffer)
	manager := queue.NewManager(recordStore, source, strategy, notifier, queueMetrics)
	scheduler := waitlist.NewScheduler(recordStore, box, common.NewSeededRand())

	return &Engine{
		Store:      recordStore,
		Manager:    manager,
		Waitlist:   scheduler,
		Notifier:   notifier,
		provider:   provider,
		box:        box,
		dispatcher: dispatcher.New(provider, box, manager, scheduler, notifier, queueMetrics),
	}
}

// NewFromEnv builds an engine from the process environment.
func NewFromEnv(opts Options) (*Engine, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	return New(config.NewStaticProvider(cfg), opts), nil
}

func defaultStore() store.RecordStore {
	addr := common.GetEnv("REDIS_ADDR", "")
	if addr == "" {
		return memstore.New()
	}
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   common.GetEnvInt("REDIS_DB", 0),
	})
	return redisstore.New(client)
}

// Submit hands an action to the dispatcher's mailbox. Safe from any
// goroutine; the action is applied on a later tick.
func (e *Engine) Submit(action models.Action) {
	e.box.Submit(action)
}

// Events is the outbound event channel. Exactly one consumer should range
// over it.
func (e *Engine) Events() <-chan interface{} {
	return e.Notifier.Events()
}

// Status reads a queue's current snapshot. Safe to call concurrently with a
// running dispatcher: it only reads, through a short-lived cache. The caller's
// context is adopted as the trace parent for the read.
func (e *Engine) Status(ctx context.Context, queueID string) (models.QueueStatusChanged, error) {
	scope := envelope.ChildScopeFromRemoteScope(ctx, "Engine.Status")
	defer scope.Finish()
	return e.Manager.Status(scope, queueID, e.provider.Snapshot())
}

// Run drives the dispatch loop until the context is cancelled or the store
// becomes unreachable.
func (e *Engine) Run(ctx context.Context) error {
	return e.dispatcher.Run(ctx)
}

// RunOnce performs a single dispatch tick.
func (e *Engine) RunOnce(ctx context.Context) error {
	return e.dispatcher.RunOnce(ctx)
}
