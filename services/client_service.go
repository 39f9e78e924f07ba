package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"roombooking-backend/models"
	"roombooking-backend/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CreateClientInput defines the expected JSON structure for creating a client
type CreateClientInput struct {
	Name            string           `json:"name" binding:"required,max=255"`
	Email           string           `json:"email" binding:"required,email,max=255"`
	Phone           string           `json:"phone" binding:"max=30"`
	BirthDate       string           `json:"birth_date"`
	CreditBalance   *decimal.Decimal `json:"credit_balance"`
	CreditConsumed  *decimal.Decimal `json:"credit_consumed"`
	CreditExpiresAt *time.Time       `json:"credit_expires_at"`
}

// UpdateClientInput defines the expected JSON structure for updating a client
type UpdateClientInput struct {
	Name            *string          `json:"name" binding:"omitempty,min=1,max=255"`
	Email           *string          `json:"email" binding:"omitempty,email,max=255"`
	Phone           *string          `json:"phone" binding:"omitempty,max=30"`
	BirthDate       *string          `json:"birth_date"`
	CreditBalance   *decimal.Decimal `json:"credit_balance"`
	CreditConsumed  *decimal.Decimal `json:"credit_consumed"`
	CreditExpiresAt *time.Time       `json:"credit_expires_at"`
}

type ClientQuery struct {
	Search  string `form:"search"`
	Page    int    `form:"page"`
	PerPage int    `form:"per_page"`
}

// Page mirrors the paginator shape the frontend consumes.
type Page[T any] struct {
	Data        []T   `json:"data"`
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
	LastPage    int   `json:"last_page"`
}

type ClientService struct {
	db     *gorm.DB
	logger *logrus.Logger
	now    utils.Clock
}

func NewClientService(db *gorm.DB, logger *logrus.Logger, clock utils.Clock) *ClientService {
	return &ClientService{db: db, logger: logger, now: clock}
}

func (s *ClientService) List(ctx context.Context, q ClientQuery) (Page[models.Client], error) {
	perPage := q.PerPage
	if perPage == 0 {
		perPage = 15
	}
	perPage = max(1, min(perPage, 100))
	page := max(1, q.Page)

	query := s.db.WithContext(ctx).Model(&models.Client{})
	if search := strings.TrimSpace(q.Search); search != "" {
		like := "%" + search + "%"
		query = query.Where("name LIKE ? OR email LIKE ? OR phone LIKE ?", like, like, like)
	}

	query = query.Session(&gorm.Session{})

	result := Page[models.Client]{Data: []models.Client{}, CurrentPage: page, PerPage: perPage}
	if err := query.Count(&result.Total).Error; err != nil {
		return result, err
	}
	result.LastPage = max(1, int(math.Ceil(float64(result.Total)/float64(perPage))))
	if err := query.Order("name ASC").Limit(perPage).Offset((page - 1) * perPage).
		Find(&result.Data).Error; err != nil {
		return result, err
	}
	return result, nil
}

func (s *ClientService) Create(ctx context.Context, in CreateClientInput) (*models.Client, error) {
	verr := &ValidationError{}
	if in.Phone != "" && !utils.ValidatePhone(in.Phone) {
		verr.Add("phone", "The phone field format is invalid.")
	}
	birthDate := parseOptionalDate(verr, "birth_date", in.BirthDate)
	checkNonNegative(verr, "credit_balance", in.CreditBalance)
	checkNonNegative(verr, "credit_consumed", in.CreditConsumed)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	if err := ensureUniqueEmail(s.db.WithContext(ctx), in.Email, uuid.Nil); err != nil {
		return nil, err
	}

	client := models.Client{
		Name:            in.Name,
		Email:           in.Email,
		Phone:           in.Phone,
		BirthDate:       birthDate,
		CreditBalance:   decimal.Zero,
		CreditConsumed:  decimal.Zero,
		CreditExpiresAt: in.CreditExpiresAt,
	}
	if in.CreditBalance != nil {
		client.CreditBalance = in.CreditBalance.Round(2)
	}
	if in.CreditConsumed != nil {
		client.CreditConsumed = in.CreditConsumed.Round(2)
	}

	if err := s.db.WithContext(ctx).Create(&client).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

// Get sweeps expired credit before returning the client.
func (s *ClientService) Get(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	var client *models.Client
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		client, err = lockClient(tx, id)
		if err != nil {
			return err
		}
		return sweepClient(tx, client, s.now())
	})
	return client, err
}

func (s *ClientService) Update(ctx context.Context, id uuid.UUID, in UpdateClientInput) (*models.Client, error) {
	verr := &ValidationError{}
	if in.Phone != nil && *in.Phone != "" && !utils.ValidatePhone(*in.Phone) {
		verr.Add("phone", "The phone field format is invalid.")
	}
	var birthDate *time.Time
	if in.BirthDate != nil {
		birthDate = parseOptionalDate(verr, "birth_date", *in.BirthDate)
	}
	checkNonNegative(verr, "credit_balance", in.CreditBalance)
	checkNonNegative(verr, "credit_consumed", in.CreditConsumed)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	var client *models.Client
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		client, err = lockClient(tx, id)
		if err != nil {
			return err
		}
		if in.Email != nil && *in.Email != client.Email {
			if err := ensureUniqueEmail(tx, *in.Email, client.ID); err != nil {
				return err
			}
			client.Email = *in.Email
		}
		if in.Name != nil {
			client.Name = *in.Name
		}
		if in.Phone != nil {
			client.Phone = *in.Phone
		}
		if in.BirthDate != nil {
			client.BirthDate = birthDate
		}
		if in.CreditBalance != nil {
			client.CreditBalance = in.CreditBalance.Round(2)
		}
		if in.CreditConsumed != nil {
			client.CreditConsumed = in.CreditConsumed.Round(2)
		}
		if in.CreditExpiresAt != nil {
			client.CreditExpiresAt = in.CreditExpiresAt
		}
		return tx.Save(client).Error
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Delete removes the client together with its bookings.
func (s *ClientService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockClient(tx, id); err != nil {
			return err
		}
		if err := tx.Where("client_id = ?", id).Delete(&models.Booking{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Client{}, "id = ?", id).Error
	})
}

// ensureUniqueEmail is a friendly pre-check; the unique index is the final guard.
func ensureUniqueEmail(db *gorm.DB, email string, except uuid.UUID) error {
	var existing models.Client
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil && existing.ID != except {
		return NewValidationError("email", "The email has already been taken.")
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return nil
}

func parseOptionalDate(verr *ValidationError, field, value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := utils.ParseDate(value)
	if err != nil {
		verr.Add(field, "The "+field+" field "+err.Error()+".")
		return nil
	}
	return &t
}

func checkNonNegative(verr *ValidationError, field string, v *decimal.Decimal) {
	if v != nil && v.IsNegative() {
		verr.Add(field, "The "+field+" field must be at least 0.")
	}
}
