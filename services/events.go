package services

import (
	"context"
	"time"

	"roombooking-backend/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EventPublisher delivers booking lifecycle events after commit.
type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type NoopPublisher struct{}

func (NoopPublisher) PublishJSON(context.Context, string, any) error { return nil }

type BookingEvent struct {
	BookingID   string    `json:"booking_id"`
	ClientID    string    `json:"client_id"`
	RoomID      string    `json:"room_id"`
	Status      string    `json:"status"`
	HoursBooked float64   `json:"hours_booked"`
	HoursDelta  float64   `json:"hours_delta"`
	ActorID     string    `json:"actor_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func publishBookingEvent(ctx context.Context, pub EventPublisher, logger *logrus.Logger, key string, b *models.Booking, delta float64, actor models.Principal, now time.Time) {
	hours, _ := b.HoursBooked.Float64()
	ev := BookingEvent{
		BookingID:   b.ID.String(),
		ClientID:    b.ClientID.String(),
		RoomID:      b.RoomID.String(),
		Status:      string(b.Status),
		HoursBooked: hours,
		HoursDelta:  delta,
		OccurredAt:  now,
	}
	if actor.UserID != uuid.Nil {
		ev.ActorID = actor.UserID.String()
	}
	if err := pub.PublishJSON(ctx, key, ev); err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"event":      key,
			"booking_id": b.ID,
		}).Warn("failed to publish booking event")
	}
}
