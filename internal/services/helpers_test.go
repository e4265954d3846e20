package services

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/catalog"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/database"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/lifecycle"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "billing.db")
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger:         logger.Discard,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

type recordingNotifier struct {
	mu      sync.Mutex
	intents []lifecycle.Intent
}

func (n *recordingNotifier) Enqueue(intents ...lifecycle.Intent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.intents = append(n.intents, intents...)
}

func (n *recordingNotifier) reasons() []lifecycle.Reason {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]lifecycle.Reason, len(n.intents))
	for i, in := range n.intents {
		out[i] = in.Reason
	}
	return out
}

// fixture wires every service against one sqlite database and a clock the
// test controls.
type fixture struct {
	db         *gorm.DB
	now        time.Time
	policy     lifecycle.Policy
	plans      *catalog.Registry
	notifier   *recordingNotifier
	store      *SubscriptionStore
	ledger     *LedgerService
	subs       *SubscriptionService
	reconciler *Reconciler
	reminders  *ReminderService
	scheduler  *Scheduler
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	f := &fixture{
		db:       openTestDB(t),
		now:      now,
		policy:   lifecycle.DefaultPolicy(),
		plans:    catalog.Default(),
		notifier: &recordingNotifier{},
	}
	clock := func() time.Time { return f.now }

	f.store = NewSubscriptionStore(f.db, NewLocalLocker(), nil)
	f.ledger = NewLedgerService(f.db, f.store, f.notifier, f.policy, 7)
	f.ledger.clock = clock
	f.subs = NewSubscriptionService(f.plans, f.store, f.notifier, f.policy)
	f.subs.clock = clock
	f.reconciler = NewReconciler(f.db, f.store, f.notifier, f.policy)
	f.reconciler.clock = clock
	f.reminders = NewReminderService(NewGormReminderLog(f.db), time.UTC)
	f.scheduler = NewScheduler(f.store, f.ledger, f.reminders, f.notifier, f.policy, 4)
	f.scheduler.clock = clock
	return f
}

func (f *fixture) plan(t *testing.T, id string) lifecycle.PlanSnapshot {
	t.Helper()
	p, err := f.plans.Snapshot(id)
	require.NoError(t, err)
	return p
}

// insert stores rec as the tenant's current subscription.
func (f *fixture) insert(t *testing.T, rec lifecycle.Record) lifecycle.Record {
	t.Helper()
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.TenantID == uuid.Nil {
		rec.TenantID = uuid.New()
	}
	require.NoError(t, f.store.Insert(t.Context(), rec, "test", nil))
	return rec
}

// activeManual is a manually paid active record whose period ends at end.
func (f *fixture) activeManual(t *testing.T, start, end time.Time) lifecycle.Record {
	t.Helper()
	return f.insert(t, lifecycle.Record{
		Plan:               f.plan(t, "pro"),
		Status:             lifecycle.StatusActive,
		CurrentPeriodStart: &start,
		CurrentPeriodEnd:   &end,
		NextBillingDate:    &end,
		ActivationSource:   lifecycle.SourceManual,
	})
}

func (f *fixture) current(t *testing.T, tenantID uuid.UUID) *models.Subscription {
	t.Helper()
	row, err := f.store.Current(t.Context(), tenantID)
	require.NoError(t, err)
	return row
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
