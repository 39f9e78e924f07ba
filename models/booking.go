package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
)

// Valid reports whether s is one of the four known statuses.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Terminal statuses accept no further lifecycle transitions.
func (s BookingStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

type Booking struct {
	ID              uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	ClientID        uuid.UUID  `gorm:"type:uuid;index;not null" json:"client_id"`
	RoomID          uuid.UUID  `gorm:"type:uuid;index;not null" json:"room_id"`
	CreatedByUserID *uuid.UUID `gorm:"type:uuid;index" json:"created_by_user_id,omitempty"`

	BookingDate time.Time       `gorm:"type:date;index;not null" json:"booking_date"`
	StartTime   string          `gorm:"type:varchar(5);not null" json:"start_time"` // HH:MM
	EndTime     string          `gorm:"type:varchar(5);not null" json:"end_time"`   // HH:MM
	HoursBooked decimal.Decimal `gorm:"type:decimal(8,2);not null" json:"hours_booked"`
	Status      BookingStatus   `gorm:"type:varchar(20);index;not null;default:'pending'" json:"status"`
	Notes       string          `gorm:"type:text" json:"notes"`
	CancelledAt *time.Time      `json:"cancelled_at"`

	Client *Client `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Room   *Room   `gorm:"foreignKey:RoomID" json:"room,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Booking) BeforeCreate(tx *gorm.DB) (err error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return
}
