package services

import (
	"context"
	"errors"
	"sort"
	"strconv"

	"roombooking-backend/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RoomInput is used for both creation and partial edits.
type RoomInput struct {
	Number      *string `json:"number" binding:"omitempty,min=1,max=20"`
	Name        *string `json:"name" binding:"omitempty,min=1,max=255"`
	Description *string `json:"description"`
	Capacity    *int    `json:"capacity"`
	IsActive    *bool   `json:"is_active"`
}

type RoomService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewRoomService(db *gorm.DB, logger *logrus.Logger) *RoomService {
	return &RoomService{db: db, logger: logger}
}

// ListActive returns the rooms that can be booked, ordered by number.
func (s *RoomService) ListActive(ctx context.Context) ([]models.Room, error) {
	rooms := []models.Room{}
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Find(&rooms).Error; err != nil {
		return nil, err
	}
	sort.SliceStable(rooms, func(i, j int) bool {
		return roomNumberLess(rooms[i].Number, rooms[j].Number)
	})
	return rooms, nil
}

func (s *RoomService) Get(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	var room models.Room
	err := s.db.WithContext(ctx).First(&room, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "Room"}
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *RoomService) Create(ctx context.Context, actor models.Principal, in RoomInput) (*models.Room, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	verr := &ValidationError{}
	if in.Number == nil || *in.Number == "" {
		verr.Add("number", "The number field is required.")
	}
	if in.Name == nil || *in.Name == "" {
		verr.Add("name", "The name field is required.")
	}
	if in.Capacity == nil {
		verr.Add("capacity", "The capacity field is required.")
	} else if *in.Capacity < 1 {
		verr.Add("capacity", "The capacity field must be at least 1.")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	room := models.Room{
		Number:   *in.Number,
		Name:     *in.Name,
		Capacity: *in.Capacity,
		IsActive: true,
	}
	if in.Description != nil {
		room.Description = *in.Description
	}
	if in.IsActive != nil {
		room.IsActive = *in.IsActive
	}

	if err := ensureUniqueRoomNumber(s.db.WithContext(ctx), room.Number, uuid.Nil); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&room).Error; err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"room_id": room.ID, "actor_id": actor.UserID}).Info("room created")
	return &room, nil
}

// Update edits a room. Rooms are deactivated, never deleted.
func (s *RoomService) Update(ctx context.Context, actor models.Principal, id uuid.UUID, in RoomInput) (*models.Room, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if in.Capacity != nil && *in.Capacity < 1 {
		return nil, NewValidationError("capacity", "The capacity field must be at least 1.")
	}

	room, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Number != nil && *in.Number != room.Number {
		if err := ensureUniqueRoomNumber(s.db.WithContext(ctx), *in.Number, room.ID); err != nil {
			return nil, err
		}
		room.Number = *in.Number
	}
	if in.Name != nil {
		room.Name = *in.Name
	}
	if in.Description != nil {
		room.Description = *in.Description
	}
	if in.Capacity != nil {
		room.Capacity = *in.Capacity
	}
	if in.IsActive != nil {
		room.IsActive = *in.IsActive
	}

	if err := s.db.WithContext(ctx).Save(room).Error; err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"room_id": room.ID, "actor_id": actor.UserID, "is_active": room.IsActive}).Info("room updated")
	return room, nil
}

// roomNumberLess orders numeric room numbers by value ("9" before "10") and
// falls back to string order when either is not a number.
func roomNumberLess(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil && na != nb {
		return na < nb
	}
	return a < b
}

func ensureUniqueRoomNumber(db *gorm.DB, number string, except uuid.UUID) error {
	var existing models.Room
	err := db.Where("number = ?", number).First(&existing).Error
	if err == nil && existing.ID != except {
		return NewValidationError("number", "The number has already been taken.")
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return nil
}
