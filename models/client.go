package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrInsufficientCredit is returned by Debit when the balance cannot cover the hours.
var ErrInsufficientCredit = errors.New("insufficient credit")

func init() {
	// Balances are rendered as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

type Client struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	Name      string     `gorm:"not null" json:"name"`
	Email     string     `gorm:"uniqueIndex;not null" json:"email"`
	Phone     string     `json:"phone"`
	BirthDate *time.Time `gorm:"type:date;index" json:"birth_date"`

	CreditBalance   decimal.Decimal `gorm:"type:decimal(8,2);not null;default:0" json:"credit_balance"`
	CreditConsumed  decimal.Decimal `gorm:"type:decimal(8,2);not null;default:0" json:"credit_consumed"`
	CreditExpiresAt *time.Time      `json:"credit_expires_at"`

	Bookings []Booking `gorm:"foreignKey:ClientID;constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Client) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return
}

// ExpireCredits zeroes the balance once the expiry instant has passed.
// It reports whether the client changed.
func (c *Client) ExpireCredits(now time.Time) bool {
	if c.CreditExpiresAt == nil || !now.After(*c.CreditExpiresAt) {
		return false
	}
	c.CreditBalance = decimal.Zero
	c.CreditExpiresAt = nil
	return true
}

// HasSufficientCredit sweeps expired credit before comparing.
func (c *Client) HasSufficientCredit(hours decimal.Decimal, now time.Time) bool {
	c.ExpireCredits(now)
	return c.CreditBalance.GreaterThanOrEqual(hours)
}

// Debit spends hours from the balance and adds them to the consumed total.
func (c *Client) Debit(hours decimal.Decimal, now time.Time) error {
	if !c.HasSufficientCredit(hours, now) {
		return ErrInsufficientCredit
	}
	c.CreditBalance = decimal.Max(decimal.Zero, c.CreditBalance.Sub(hours)).Round(2)
	c.CreditConsumed = c.CreditConsumed.Add(hours).Round(2)
	return nil
}

// Refund gives hours back. No expiry sweep runs here, a refund must survive it.
func (c *Client) Refund(hours decimal.Decimal) {
	c.CreditBalance = c.CreditBalance.Add(hours).Round(2)
	c.CreditConsumed = decimal.Max(decimal.Zero, c.CreditConsumed.Sub(hours)).Round(2)
}

// AddCredit tops the balance up and moves the expiry to the end of the month.
func (c *Client) AddCredit(hours decimal.Decimal, now time.Time) {
	c.ExpireCredits(now)
	c.CreditBalance = c.CreditBalance.Add(hours).Round(2)
	expires := EndOfMonth(now)
	c.CreditExpiresAt = &expires
}

// EndOfMonth returns the last instant of t's month in t's location.
func EndOfMonth(t time.Time) time.Time {
	firstOfNext := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, 1, 0)
	return firstOfNext.Add(-time.Microsecond)
}
