package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GreetingLog struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key"`
	ClientID     uuid.UUID `gorm:"type:uuid;index;not null"`
	Message      string    `gorm:"type:text"`
	Status       string    `gorm:"type:varchar(20)"` // sent, failed
	ErrorMessage string    `gorm:"type:text"`
	SentAt       time.Time
	CreatedAt    time.Time
}

func (g *GreetingLog) BeforeCreate(tx *gorm.DB) (err error) {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return
}

// All returns every model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&AccessToken{},
		&RefreshToken{},
		&Client{},
		&Room{},
		&Booking{},
		&GreetingLog{},
	}
}
