// Package sdk wires the executor, transport, cache, collection,
// scheduler, operations, and persisted-storage layers into one pumpable
// unit a host game integrates against, generalized from the teacher's
// manager+worker in-process wiring to a single-process mod SDK.
package sdk

import (
	"context"
	"fmt"

	"net/http"

	"github.com/cuemby/modio-go/pkg/async"
	"github.com/cuemby/modio-go/pkg/cache"
	"github.com/cuemby/modio-go/pkg/collection"
	"github.com/cuemby/modio-go/pkg/fsio"
	"github.com/cuemby/modio-go/pkg/metrics"
	"github.com/cuemby/modio-go/pkg/ops"
	"github.com/cuemby/modio-go/pkg/progress"
	"github.com/cuemby/modio-go/pkg/scheduler"
	"github.com/cuemby/modio-go/pkg/security"
	"github.com/cuemby/modio-go/pkg/storage"
	"github.com/cuemby/modio-go/pkg/transport"
	"github.com/cuemby/modio-go/pkg/types"
)

// Config configures one SDK instance for a single game.
type Config struct {
	GameID      int64
	APIKey      string
	Environment transport.Environment
	// OverrideURL replaces the derived API host; used by test harnesses.
	OverrideURL string
	// RootPath is where mods, caches, and metadata are stored.
	RootPath string
	// DeviceID seeds the at-rest encryption key for the persisted
	// metadata document; it need only be stable across runs on the same
	// device, not secret.
	DeviceID string
	// EventLogCapacity bounds the drained progress event ring buffer.
	// Defaults to 256 when zero.
	EventLogCapacity int
}

// SDK is the host-facing facade: authenticate, subscribe/unsubscribe,
// install/update/uninstall, upload, and Pump to drive the reconciliation
// loop and any completed async I/O.
type SDK struct {
	cfg Config

	executor   *async.Executor
	client     *transport.Client
	session    *cache.Session
	modInfo    *cache.ModInfoCache
	urlCache   *cache.URLCache
	paths      *fsio.Paths
	collection *collection.Collection
	ledger     *types.DeferredUnsubscribeLedger
	events     *progress.EventLog
	store      storage.Store
	ops        *ops.Ops
	scheduler  *scheduler.Scheduler
	metrics    *metrics.Collector
}

// New builds an SDK from cfg. It does not perform any network I/O — call
// AuthenticateUserByEmailCode/AuthenticateUserByProvider and Pump to begin
// driving requests.
func New(cfg Config) *SDK {
	if cfg.EventLogCapacity == 0 {
		cfg.EventLogCapacity = 256
	}

	paths := fsio.NewPaths(cfg.RootPath)
	session := cache.NewSession()
	urlCache := cache.NewURLCache()
	modInfo := cache.NewModInfoCache()
	events := progress.NewEventLog(cfg.EventLogCapacity)
	col := collection.New()
	ledger := types.NewDeferredUnsubscribeLedger()

	executor := async.NewExecutor()

	server := transport.ServerConfig{
		GameID:      cfg.GameID,
		APIKey:      cfg.APIKey,
		Environment: cfg.Environment,
		OverrideURL: cfg.OverrideURL,
	}
	client := transport.NewClient(server, urlCache, session, executor)

	key := security.DeriveKeyFromDeviceID(cfg.DeviceID)
	store := storage.NewFileStore(func(gameID int64) string {
		return paths.MetadataDir(gameID)
	}, key)

	o := ops.New(client, cfg.GameID, modInfo, paths, events, session, col, executor)
	sched := scheduler.New(col, session, ledger, events, o)
	metricsCollector := metrics.NewCollector(col)
	metricsCollector.Start()

	return &SDK{
		cfg:        cfg,
		executor:   executor,
		client:     client,
		session:    session,
		modInfo:    modInfo,
		urlCache:   urlCache,
		paths:      paths,
		collection: col,
		ledger:     ledger,
		events:     events,
		store:      store,
		ops:        o,
		scheduler:  sched,
		metrics:    metricsCollector,
	}
}

// MetricsHandler returns the Prometheus scrape handler for this SDK's
// reconciliation/transport/cache instrumentation; the host mounts it on
// its own HTTP mux wherever it exposes metrics.
func (s *SDK) MetricsHandler() http.Handler { return metrics.Handler() }

// Ops exposes the composed operations (subscribe, install, upload, auth,
// ...) for callers that need more than Pump's reconciliation loop.
func (s *SDK) Ops() *ops.Ops { return s.ops }

// Collection exposes the live mod collection for read-only inspection by
// the host UI.
func (s *SDK) Collection() *collection.Collection { return s.collection }

// Events drains the progress event log, to be called once per pump.
func (s *SDK) Events() []progress.Event { return s.events.Drain() }

// SetDesiredSubscriptions updates the scheduler's target subscription set,
// typically after a fresh "list my subscriptions" API response.
func (s *SDK) SetDesiredSubscriptions(ids []types.ModID) {
	next := make(types.SubscriptionList, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
	}
	s.scheduler.SetDesiredSubscriptions(next)
}

// Pump drains any completed asynchronous I/O and performs one
// reconciliation tick. The host calls this once per frame/update.
func (s *SDK) Pump(ctx context.Context) error {
	s.executor.RunPending()
	return s.scheduler.Tick(ctx)
}

// LoadUser restores a previously authenticated user's persisted document
// (subscriptions, OAuth token, profile, mod collection) into the live
// session and collection, for resuming across a process restart.
func (s *SDK) LoadUser(userID types.UserID) error {
	doc, err := s.store.GetDocument(s.cfg.GameID, int64(userID))
	if err != nil {
		return err
	}

	s.session.SetUser(userID, doc.OAuth, doc.Profile)
	for _, snap := range doc.Mods {
		s.collection.Put(types.RestoreFromSnapshot(snap))
	}

	desired := make(types.SubscriptionList, len(doc.Subscriptions))
	for _, id := range doc.Subscriptions {
		desired[id] = struct{}{}
	}
	s.scheduler.SetDesiredSubscriptions(desired)
	s.ledger.Load(doc.DeferredUnsubscribes)
	return nil
}

// SaveUser persists the current session, subscription set, and mod
// collection for userID, overwriting its prior document.
func (s *SDK) SaveUser(userID types.UserID, subscriptions []types.ModID) error {
	snap := s.session.Read()
	entries := s.collection.All()
	mods := make([]types.PersistedSnapshot, 0, len(entries))
	for _, e := range entries {
		mods = append(mods, e.Snapshot())
	}

	deferred := s.ledger.Snapshot()

	doc := &storage.Document{
		Subscriptions:        subscriptions,
		DeferredUnsubscribes: deferred,
		OAuth:                snap.Token,
		Profile:              snap.Profile,
		Mods:                 mods,
	}
	return s.store.UpdateDocument(s.cfg.GameID, int64(userID), doc)
}

// SwitchUser invalidates the session's OAuth token and empties the
// mod-info cache and the collection before a new user authenticates. The
// session's user ID and profile, the URL cache, the deferred-unsubscribe
// ledger and the persisted document are left as they are.
func (s *SDK) SwitchUser() {
	s.session.InvalidateToken()
	s.modInfo.Reset()
	for _, e := range s.collection.All() {
		s.collection.Remove(e.ID)
	}
}

// Close shuts down the executor and the metrics collector.
func (s *SDK) Close() {
	s.executor.Close()
	s.metrics.Stop()
}

func (s *SDK) String() string {
	return fmt.Sprintf("sdk(game=%d, mods=%d)", s.cfg.GameID, s.collection.Len())
}
