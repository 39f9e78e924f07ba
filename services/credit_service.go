package services

import (
	"context"
	"errors"
	"time"

	"roombooking-backend/models"
	"roombooking-backend/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CreditService struct {
	db     *gorm.DB
	logger *logrus.Logger
	now    utils.Clock
}

func NewCreditService(db *gorm.DB, logger *logrus.Logger, clock utils.Clock) *CreditService {
	return &CreditService{db: db, logger: logger, now: clock}
}

type BalanceSummary struct {
	Balance   decimal.Decimal `json:"balance"`
	Consumed  decimal.Decimal `json:"consumed"`
	ExpiresAt *time.Time      `json:"expires_at"`
}

// Balance sweeps expired credit and reports the client's ledger.
func (s *CreditService) Balance(ctx context.Context, clientID uuid.UUID) (BalanceSummary, error) {
	var summary BalanceSummary
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		client, err := lockClient(tx, clientID)
		if err != nil {
			return err
		}
		if err := sweepClient(tx, client, s.now()); err != nil {
			return err
		}
		summary = BalanceSummary{
			Balance:   client.CreditBalance,
			Consumed:  client.CreditConsumed,
			ExpiresAt: client.CreditExpiresAt,
		}
		return nil
	})
	return summary, err
}

// AddCredit is the administrative top-up. The new expiry is the end of the current month.
func (s *CreditService) AddCredit(ctx context.Context, actor models.Principal, clientID uuid.UUID, hours decimal.Decimal) (*models.Client, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	hours = hours.Round(2)
	if !hours.IsPositive() {
		return nil, NewValidationError("hours", "The hours field must be at least 0.01.")
	}

	var client *models.Client
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		client, err = lockClient(tx, clientID)
		if err != nil {
			return err
		}
		client.AddCredit(hours, s.now())
		return saveLedger(tx, client)
	})
	if err != nil {
		return nil, err
	}

	h, _ := hours.Float64()
	observeLedger("top_up", h)
	s.logger.WithFields(logrus.Fields{
		"client_id": client.ID,
		"hours":     hours.String(),
		"balance":   client.CreditBalance.String(),
		"actor_id":  actor.UserID,
	}).Info("credit added")
	return client, nil
}

// SweepExpired zeroes every balance whose expiry has passed and returns how
// many clients were changed.
func (s *CreditService) SweepExpired(ctx context.Context) (int, error) {
	now := s.now()

	var ids []uuid.UUID
	if err := s.db.WithContext(ctx).Model(&models.Client{}).
		Where("credit_expires_at IS NOT NULL AND credit_expires_at < ?", now).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}

	swept := 0
	for _, id := range ids {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			client, err := lockClient(tx, id)
			if err != nil {
				return err
			}
			if client.ExpireCredits(now) {
				swept++
				return saveLedger(tx, client)
			}
			return nil
		})
		var nf *NotFoundError
		if errors.As(err, &nf) {
			continue
		}
		if err != nil {
			return swept, err
		}
	}

	if swept > 0 {
		creditsExpired.Add(float64(swept))
		s.logger.WithField("clients", swept).Info("expired credits swept")
	}
	return swept, nil
}

// lockClient loads the client row with FOR UPDATE so concurrent ledger
// mutations on the same client run one after another.
func lockClient(tx *gorm.DB, id uuid.UUID) (*models.Client, error) {
	var client models.Client
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&client, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "Client"}
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func sweepClient(tx *gorm.DB, client *models.Client, now time.Time) error {
	if !client.ExpireCredits(now) {
		return nil
	}
	creditsExpired.Inc()
	return saveLedger(tx, client)
}

// saveLedger writes only the ledger columns of the client.
func saveLedger(tx *gorm.DB, client *models.Client) error {
	return tx.Model(client).
		Select("credit_balance", "credit_consumed", "credit_expires_at", "updated_at").
		Updates(client).Error
}
