package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"roombooking-backend/config"
	"roombooking-backend/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2025, time.November, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

var (
	admin = models.Principal{UserID: uuid.New(), Email: "admin@example.com", Role: models.RoleAdmin}
	staff = models.Principal{UserID: uuid.New(), Email: "staff@example.com", Role: models.RoleStaff}
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// newTestDB opens a private in-memory sqlite database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := config.Config{DBDriver: "sqlite", DBURL: "file:" + uuid.NewString() + "?mode=memory&cache=shared"}
	db, err := config.ConnectDB(cfg, quietLogger())
	if err != nil {
		t.Fatalf("ConnectDB: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func strPtr(s string) *string { return &s }

func seedClient(t *testing.T, db *gorm.DB, name, balance string, expiresAt *time.Time) *models.Client {
	t.Helper()
	c := &models.Client{
		Name:            name,
		Email:           uuid.NewString()[:8] + "@example.com",
		CreditBalance:   dec(balance),
		CreditExpiresAt: expiresAt,
	}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("seed client: %v", err)
	}
	return c
}

func seedRoom(t *testing.T, db *gorm.DB, number string, active bool) *models.Room {
	t.Helper()
	r := &models.Room{Number: number, Name: "Room " + number, Capacity: 4, IsActive: active}
	if err := db.Create(r).Error; err != nil {
		t.Fatalf("seed room: %v", err)
	}
	return r
}

func reloadClient(t *testing.T, db *gorm.DB, id uuid.UUID) models.Client {
	t.Helper()
	var c models.Client
	if err := db.First(&c, "id = ?", id).Error; err != nil {
		t.Fatalf("reload client: %v", err)
	}
	return c
}

func assertLedger(t *testing.T, db *gorm.DB, id uuid.UUID, balance, consumed string) {
	t.Helper()
	c := reloadClient(t, db, id)
	if !c.CreditBalance.Equal(dec(balance)) {
		t.Errorf("credit_balance = %s, want %s", c.CreditBalance, balance)
	}
	if !c.CreditConsumed.Equal(dec(consumed)) {
		t.Errorf("credit_consumed = %s, want %s", c.CreditConsumed, consumed)
	}
}

// validationFields fails the test unless err is a ValidationError.
func validationFields(t *testing.T, err error) map[string][]string {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	return verr.Fields
}

func assertNotFound(t *testing.T, err error, resource string) {
	t.Helper()
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v, want *NotFoundError", err)
	}
	if nf.Resource != resource {
		t.Errorf("resource = %q, want %q", nf.Resource, resource)
	}
}

type recordedEvent struct {
	key   string
	event BookingEvent
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (p *recordingPublisher) PublishJSON(_ context.Context, key string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ev, _ := v.(BookingEvent)
	p.events = append(p.events, recordedEvent{key: key, event: ev})
	return p.err
}

func (p *recordingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.key)
	}
	return out
}
