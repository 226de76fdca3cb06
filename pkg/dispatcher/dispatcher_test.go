// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package dispatcher_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/AccelByte/extend-queue-matchmaker/pkg/balance"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/config"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/dispatcher"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/mailbox"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/metrics"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/models"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/queue"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/store"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/store/memstore"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/testsetup"
	"github.com/AccelByte/extend-queue-matchmaker/pkg/waitlist"
)

type engineFixture struct {
	store      store.RecordStore
	box        *mailbox.Mailbox
	manager    *queue.Manager
	notifier   *queue.BufferedNotifier
	dispatcher *dispatcher.Dispatcher
	cfg        config.Config
	now        time.Time
}

func newEngineFixture(recordStore store.RecordStore) *engineFixture {
	cfg := config.Config{TickIntervalSecond: 1, CooldownDurationSecond: 60, StatusCacheTTLSecond: 1}
	box := mailbox.New()
	notifier := queue.NewBufferedNotifier(256)
	manager := queue.NewManager(
		recordStore,
		testsetup.StubRatingSource{},
		balance.NewRandomizedStrategy(50, rand.New(rand.NewSource(1))),
		notifier,
		metrics.NewNopMetrics(),
	)
	scheduler := waitlist.NewScheduler(recordStore, box, rand.New(rand.NewSource(2)))
	d := dispatcher.New(config.NewStaticProvider(cfg), box, manager, scheduler, notifier, metrics.NewNopMetrics())

	f := &engineFixture{
		store:      recordStore,
		box:        box,
		manager:    manager,
		notifier:   notifier,
		dispatcher: d,
		cfg:        cfg,
		now:        time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	d.SetClock(func() time.Time { return f.now })
	return f
}

func (f *engineFixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *engineFixture) drainEvents() []interface{} {
	var events []interface{}
	for {
		select {
		case ev := <-f.notifier.Events():
			events = append(events, ev)
		default:
			return events
		}
	}
}

// Full cycle on a two-player queue: both players join through the mailbox, a
// 1v1 match forms, the result comes back, and after the cooldown both players
// are shuffled back in and matched again.
func TestSoloQueueFullCycle(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	f := newEngineFixture(memstore.New())
	ctx := context.Background()

	q, err := f.manager.CreateQueue(g.TestScope, models.Queue{Name: "solo", TargetSize: 2}, f.cfg)
	g.Expect(err).ToNot(HaveOccurred())
	f.drainEvents()

	f.box.Submit(models.NewJoinAction("alice", []string{q.ID}))
	f.box.Submit(models.NewJoinAction("bob", []string{q.ID}))
	g.Expect(f.dispatcher.RunOnce(ctx)).To(Succeed())

	var formed []models.MatchFormed
	for _, ev := range f.drainEvents() {
		if mf, ok := ev.(models.MatchFormed); ok {
			formed = append(formed, mf)
		}
	}
	g.Expect(formed).To(HaveLen(1))
	g.Expect(formed[0].Roster0).To(HaveLen(1))
	g.Expect(formed[0].Roster1).To(HaveLen(1))

	members, err := f.store.ListMemberships(ctx, q.ID)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(members).To(BeEmpty(), "forming the match must empty the queue")

	f.box.Submit(models.NewMatchFinishedAction(formed[0].MatchID, models.OutcomeRoster0Win))
	g.Expect(f.dispatcher.RunOnce(ctx)).To(Succeed())

	match, err := f.store.GetMatch(ctx, formed[0].MatchID)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(match.Status).To(Equal(models.MatchStatusFinished))
	f.drainEvents()

	// cooldown elapsed: one tick submits the requeues, the next applies them
	f.advance(f.cfg.CooldownDuration() + time.Second)
	g.Expect(f.dispatcher.RunOnce(ctx)).To(Succeed())
	g.Expect(f.box.Len()).To(Equal(2))
	g.Expect(f.dispatcher.RunOnce(ctx)).To(Succeed())

	var requeued []models.RequeueAttempted
	formed = nil
	fullStatusAt, formedAt := -1, -1
	for i, ev := range f.drainEvents() {
		switch typed := ev.(type) {
		case models.RequeueAttempted:
			requeued = append(requeued, typed)
		case models.MatchFormed:
			formed = append(formed, typed)
			formedAt = i
		case models.QueueStatusChanged:
			if typed.CurrentSize == 2 && fullStatusAt == -1 {
				fullStatusAt = i
			}
		}
	}
	g.Expect(fullStatusAt).To(BeNumerically(">=", 0), "the queue must report reaching full size")
	g.Expect(fullStatusAt).To(BeNumerically("<", formedAt), "full-queue status precedes the match")
	g.Expect(requeued).To(HaveLen(2))
	for _, attempt := range requeued {
		g.Expect(attempt.Succeeded).To(BeTrue())
	}
	g.Expect(formed).To(HaveLen(1), "both players back in a two-player queue must form a new match")
	g.Expect(formed[0].MatchID).ToNot(Equal(match.ID))
}

// A player who lands in another match before their cooldown expires must not
// be requeued: no double entry, their cooldown record is simply dropped.
func TestRequeueSkipsPlayersAlreadyInMatch(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	f := newEngineFixture(memstore.New())
	ctx := context.Background()

	q, err := f.manager.CreateQueue(g.TestScope, models.Queue{Name: "solo", TargetSize: 2}, f.cfg)
	g.Expect(err).ToNot(HaveOccurred())

	match, err := f.store.CreateMatch(ctx, models.Match{QueueID: q.ID, Roster0: []string{"alice"}, Roster1: []string{"bob"}})
	g.Expect(err).ToNot(HaveOccurred())
	f.box.Submit(models.NewMatchFinishedAction(match.ID, models.OutcomeTie))
	g.Expect(f.dispatcher.RunOnce(ctx)).To(Succeed())

	// alice is pulled into a new match while still cooling down
	_, err = f.store.CreateMatch(ctx, models.Match{QueueID: q.ID, Roster0: []string{"alice"}, Roster1: []string{"carol"}})
	g.Expect(err).ToNot(HaveOccurred())

	f.advance(f.cfg.CooldownDuration() + time.Second)
	g.Expect(f.dispatcher.RunOnce(ctx)).To(Succeed())
	g.Expect(f.dispatcher.RunOnce(ctx)).To(Succeed())

	members, err := f.store.ListMemberships(ctx, q.ID)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(members).To(HaveLen(1))
	g.Expect(members[0].PlayerID).To(Equal("bob"))

	due, err := f.store.DueCooldowns(ctx, f.now.Add(time.Hour))
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(due).To(BeEmpty())
}

// A finished intent for a match that does not exist is dropped on the floor
// rather than wedging the mailbox.
func TestUnknownMatchResultIsDropped(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	f := newEngineFixture(memstore.New())
	ctx := context.Background()

	f.box.Submit(models.NewMatchFinishedAction("no-such-match", models.OutcomeTie))
	g.Expect(f.dispatcher.RunOnce(ctx)).To(Succeed())
	g.Expect(f.box.Len()).To(BeZero())
}

// flakyStore fails ActiveMatchForPlayer a fixed number of times before
// delegating, standing in for a store that is briefly unreachable.
type flakyStore struct {
	store.RecordStore
	remaining int
}

func (f *flakyStore) ActiveMatchForPlayer(ctx context.Context, playerID string) (*models.Match, error) {
	if f.remaining > 0 {
		f.remaining--
		return nil, store.ErrUnavailable
	}
	return f.RecordStore.ActiveMatchForPlayer(ctx, playerID)
}

func TestTransientStoreFailureRetriesAction(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	flaky := &flakyStore{RecordStore: memstore.New(), remaining: 1}
	f := newEngineFixture(flaky)
	ctx := context.Background()

	q, err := f.manager.CreateQueue(g.TestScope, models.Queue{Name: "solo", TargetSize: 2}, f.cfg)
	g.Expect(err).ToNot(HaveOccurred())

	f.box.Submit(models.NewJoinAction("alice", []string{q.ID}))
	g.Expect(f.dispatcher.RunOnce(ctx)).To(Succeed(), "a single failed tick is tolerated")
	g.Expect(f.box.Len()).To(Equal(1), "the failed action goes back to the mailbox")

	g.Expect(f.dispatcher.RunOnce(ctx)).To(Succeed())
	members, err := f.store.ListMemberships(ctx, q.ID)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(members).To(HaveLen(1))
}

func TestDispatcherHaltsAfterConsecutiveFailures(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	flaky := &flakyStore{RecordStore: memstore.New(), remaining: 100}
	f := newEngineFixture(flaky)
	ctx := context.Background()

	q, err := f.manager.CreateQueue(g.TestScope, models.Queue{Name: "solo", TargetSize: 2}, f.cfg)
	g.Expect(err).ToNot(HaveOccurred())

	f.box.Submit(models.NewJoinAction("alice", []string{q.ID}))
	for i := 0; i < 4; i++ {
		g.Expect(f.dispatcher.RunOnce(ctx)).To(Succeed())
	}
	g.Expect(f.dispatcher.RunOnce(ctx)).To(MatchError(ContainSubstring("unreachable")))
}
