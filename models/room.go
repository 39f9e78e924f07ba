package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Room struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Number      string    `gorm:"uniqueIndex;not null" json:"number"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Capacity    int       `gorm:"not null" json:"capacity"`
	IsActive    bool      `gorm:"not null" json:"is_active"`

	Bookings []Booking `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Room) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return
}

// DefaultRooms is the room set installed by the seed command.
func DefaultRooms() []Room {
	return []Room{
		{Number: "101", Name: "Executive Room A", Description: "Executive meetings for up to 8 people. Projector, TV and air conditioning.", Capacity: 8, IsActive: true},
		{Number: "102", Name: "Meeting Room B", Description: "Mid-sized meetings. Whiteboard and video conferencing.", Capacity: 12, IsActive: true},
		{Number: "103", Name: "Training Room", Description: "Trainings and workshops with a flexible layout.", Capacity: 20, IsActive: true},
		{Number: "201", Name: "Coworking Room", Description: "Shared desk in a relaxed, well lit space.", Capacity: 6, IsActive: true},
		{Number: "202", Name: "Private Room", Description: "Quiet single room for focused work or appointments.", Capacity: 2, IsActive: true},
		{Number: "203", Name: "Auditorium", Description: "Events, talks and presentations with a professional sound system.", Capacity: 50, IsActive: true},
	}
}
