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
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	tracer = otel.Tracer("roombooking-backend/services")

	minimumHours = decimal.RequireFromString("0.5")
)

// CreateBookingInput defines the expected JSON structure for creating a booking
type CreateBookingInput struct {
	ClientID    uuid.UUID        `json:"client_id"`
	RoomID      uuid.UUID        `json:"room_id"`
	BookingDate string           `json:"booking_date"`
	StartTime   string           `json:"start_time"`
	EndTime     string           `json:"end_time"`
	HoursBooked *decimal.Decimal `json:"hours_booked"`
	Status      string           `json:"status"`
	Notes       string           `json:"notes"`
}

// UpdateBookingInput defines the expected JSON structure for updating a booking.
// Nil fields are left untouched.
type UpdateBookingInput struct {
	RoomID      *uuid.UUID       `json:"room_id"`
	BookingDate *string          `json:"booking_date"`
	StartTime   *string          `json:"start_time"`
	EndTime     *string          `json:"end_time"`
	HoursBooked *decimal.Decimal `json:"hours_booked"`
	Status      *string          `json:"status"`
	Notes       *string          `json:"notes"`
}

// BookingFilter narrows listings. Empty fields are ignored.
type BookingFilter struct {
	ClientID  string `json:"client_id" form:"client_id"`
	RoomID    string `json:"room_id" form:"room_id"`
	StartDate string `json:"start_date" form:"start_date"`
	EndDate   string `json:"end_date" form:"end_date"`
	Status    string `json:"status" form:"status"`
}

type BookingService struct {
	db     *gorm.DB
	logger *logrus.Logger
	events EventPublisher
	now    utils.Clock
}

func NewBookingService(db *gorm.DB, logger *logrus.Logger, events EventPublisher, clock utils.Clock) *BookingService {
	if events == nil {
		events = NoopPublisher{}
	}
	return &BookingService{db: db, logger: logger, events: events, now: clock}
}

// Create debits the client's credit and inserts the booking in one transaction.
func (s *BookingService) Create(ctx context.Context, actor models.Principal, in CreateBookingInput) (*models.Booking, error) {
	ctx, span := tracer.Start(ctx, "booking.create", trace.WithAttributes(
		attribute.String("client.id", in.ClientID.String()),
		attribute.String("room.id", in.RoomID.String()),
	))
	defer span.End()

	booking, err := s.create(ctx, actor, in)
	s.finish(span, "create", err)
	if err != nil {
		return nil, err
	}
	hours, _ := booking.HoursBooked.Float64()
	publishBookingEvent(ctx, s.events, s.logger, "booking.created", booking, hours, actor, s.now())
	return s.Get(ctx, booking.ID)
}

func (s *BookingService) create(ctx context.Context, actor models.Principal, in CreateBookingInput) (*models.Booking, error) {
	verr := &ValidationError{}
	if in.ClientID == uuid.Nil {
		verr.Add("client_id", "The client_id field is required.")
	}
	if in.RoomID == uuid.Nil {
		verr.Add("room_id", "The room_id field is required.")
	}
	date, start, end := validateSchedule(verr, &in.BookingDate, &in.StartTime, &in.EndTime, true)
	if in.HoursBooked == nil {
		verr.Add("hours_booked", "The hours_booked field is required.")
	} else if in.HoursBooked.LessThan(minimumHours) {
		verr.Add("hours_booked", "The hours_booked field must be at least 0.5.")
	}
	status := models.StatusPending
	if in.Status != "" {
		status = models.BookingStatus(in.Status)
		if status != models.StatusPending && status != models.StatusConfirmed {
			verr.Add("status", "The selected status is invalid.")
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	hours := in.HoursBooked.Round(2)
	now := s.now()
	booking := &models.Booking{
		ClientID:    in.ClientID,
		RoomID:      in.RoomID,
		BookingDate: date,
		StartTime:   start,
		EndTime:     end,
		HoursBooked: hours,
		Status:      status,
		Notes:       in.Notes,
	}
	if actor.UserID != uuid.Nil {
		id := actor.UserID
		booking.CreatedByUserID = &id
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		client, err := lockClient(tx, in.ClientID)
		if err != nil {
			return err
		}
		if err := requireActiveRoom(tx, in.RoomID); err != nil {
			return err
		}

		if err := client.Debit(hours, now); err != nil {
			if errors.Is(err, models.ErrInsufficientCredit) {
				return NewValidationError("hours_booked", "Insufficient credit to create the booking.")
			}
			return err
		}
		if err := saveLedger(tx, client); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(booking).Error; err != nil {
			return err
		}

		s.logLedger("debit", client, hours, booking.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	h, _ := hours.Float64()
	observeLedger("debit", h)
	return booking, nil
}

// Update applies the requested changes. A change in hours_booked moves the
// difference through the ledger before the booking row is written.
func (s *BookingService) Update(ctx context.Context, actor models.Principal, id uuid.UUID, in UpdateBookingInput) (*models.Booking, error) {
	ctx, span := tracer.Start(ctx, "booking.update", trace.WithAttributes(
		attribute.String("booking.id", id.String()),
	))
	defer span.End()

	booking, delta, err := s.update(ctx, actor, id, in)
	s.finish(span, "update", err)
	if err != nil {
		return nil, err
	}

	key := "booking.updated"
	if booking.Status == models.StatusCancelled {
		key = "booking.cancelled"
	}
	d, _ := delta.Float64()
	publishBookingEvent(ctx, s.events, s.logger, key, booking, d, actor, s.now())
	return s.Get(ctx, booking.ID)
}

func (s *BookingService) update(ctx context.Context, actor models.Principal, id uuid.UUID, in UpdateBookingInput) (*models.Booking, decimal.Decimal, error) {
	verr := &ValidationError{}
	if in.HoursBooked != nil && in.HoursBooked.LessThan(minimumHours) {
		verr.Add("hours_booked", "The hours_booked field must be at least 0.5.")
	}
	var status models.BookingStatus
	if in.Status != nil {
		status = models.BookingStatus(*in.Status)
		if !status.Valid() {
			verr.Add("status", "The selected status is invalid.")
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, decimal.Zero, err
	}
	if status == models.StatusCompleted && !actor.IsAdmin() {
		return nil, decimal.Zero, ErrForbidden
	}

	now := s.now()
	var booking *models.Booking
	delta := decimal.Zero

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		booking, err = lockBooking(tx, id)
		if err != nil {
			return err
		}
		if booking.Status.Terminal() {
			return NewValidationError("status", "Cancelled or completed bookings cannot be updated.")
		}

		date, start, end := booking.BookingDate, booking.StartTime, booking.EndTime
		if in.BookingDate != nil {
			date, err = utils.ParseDate(*in.BookingDate)
			if err != nil {
				verr.Add("booking_date", "The booking_date field "+err.Error()+".")
			}
		}
		if in.StartTime != nil {
			if start, err = utils.ParseClock(*in.StartTime); err != nil {
				verr.Add("start_time", "The start_time field "+err.Error()+".")
			}
		}
		if in.EndTime != nil {
			if end, err = utils.ParseClock(*in.EndTime); err != nil {
				verr.Add("end_time", "The end_time field "+err.Error()+".")
			}
		}
		if verr.Empty() && end <= start {
			verr.Add("end_time", "The end time must be after the start time.")
		}
		if err := verr.OrNil(); err != nil {
			return err
		}

		if in.RoomID != nil && *in.RoomID != booking.RoomID {
			if err := requireActiveRoom(tx, *in.RoomID); err != nil {
				return err
			}
			booking.RoomID = *in.RoomID
		}

		client, err := lockClient(tx, booking.ClientID)
		if err != nil {
			return err
		}
		if err := sweepClient(tx, client, now); err != nil {
			return err
		}

		cancelling := in.Status != nil && status == models.StatusCancelled
		if in.HoursBooked != nil {
			delta = in.HoursBooked.Round(2).Sub(booking.HoursBooked)
		}
		if cancelling && !delta.IsZero() {
			return NewValidationError("hours_booked", "The hours_booked field cannot change while cancelling the booking.")
		}

		switch {
		case cancelling:
			client.Refund(booking.HoursBooked)
			booking.CancelledAt = &now
			s.logLedger("refund", client, booking.HoursBooked, booking.ID)
		case delta.IsPositive():
			if client.CreditBalance.LessThan(delta) {
				return NewValidationError("hours_booked", "Insufficient credit to increase the booking duration.")
			}
			if err := client.Debit(delta, now); err != nil {
				return err
			}
			s.logLedger("debit", client, delta, booking.ID)
		case delta.IsNegative():
			client.Refund(delta.Abs())
			s.logLedger("refund", client, delta.Abs(), booking.ID)
		}
		if cancelling || !delta.IsZero() {
			if err := saveLedger(tx, client); err != nil {
				return err
			}
		}

		booking.BookingDate = date
		booking.StartTime = start
		booking.EndTime = end
		if in.HoursBooked != nil {
			booking.HoursBooked = in.HoursBooked.Round(2)
		}
		if in.Status != nil {
			booking.Status = status
		}
		if in.Notes != nil {
			booking.Notes = *in.Notes
		}
		return tx.Omit(clause.Associations).Save(booking).Error
	})
	if err != nil {
		return nil, decimal.Zero, err
	}

	switch f, _ := delta.Abs().Float64(); {
	case booking.Status == models.StatusCancelled:
		h, _ := booking.HoursBooked.Float64()
		observeLedger("refund", h)
	case delta.IsPositive():
		observeLedger("debit", f)
	case delta.IsNegative():
		observeLedger("refund", f)
	}
	return booking, delta, nil
}

// Cancel refunds the booking's hours and marks it cancelled. Cancelling an
// already cancelled booking changes nothing and reports alreadyCancelled.
func (s *BookingService) Cancel(ctx context.Context, actor models.Principal, id uuid.UUID) (alreadyCancelled bool, err error) {
	ctx, span := tracer.Start(ctx, "booking.cancel", trace.WithAttributes(
		attribute.String("booking.id", id.String()),
	))
	defer span.End()

	now := s.now()
	var booking *models.Booking
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		booking, err = lockBooking(tx, id)
		if err != nil {
			return err
		}
		switch booking.Status {
		case models.StatusCancelled:
			alreadyCancelled = true
			return nil
		case models.StatusCompleted:
			return NewValidationError("status", "Completed bookings cannot be cancelled.")
		}

		client, err := lockClient(tx, booking.ClientID)
		if err != nil {
			return err
		}
		client.Refund(booking.HoursBooked)
		if err := saveLedger(tx, client); err != nil {
			return err
		}

		booking.Status = models.StatusCancelled
		booking.CancelledAt = &now
		if err := tx.Omit(clause.Associations).Save(booking).Error; err != nil {
			return err
		}
		s.logLedger("refund", client, booking.HoursBooked, booking.ID)
		return nil
	})
	s.finish(span, "cancel", err)
	if err != nil || alreadyCancelled {
		return alreadyCancelled, err
	}

	h, _ := booking.HoursBooked.Float64()
	observeLedger("refund", h)
	publishBookingEvent(ctx, s.events, s.logger, "booking.cancelled", booking, -h, actor, now)
	return false, nil
}

func (s *BookingService) Get(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := s.db.WithContext(ctx).Preload("Client").Preload("Room").First(&booking, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "Booking"}
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// List returns the bookings matching filter ordered by date then start time.
func (s *BookingService) List(ctx context.Context, filter BookingFilter) ([]models.Booking, error) {
	query, err := s.filteredQuery(ctx, filter)
	if err != nil {
		return nil, err
	}

	bookings := []models.Booking{}
	if err := query.Preload("Client").Preload("Room").
		Order("booking_date ASC").Order("start_time ASC").
		Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

// ListByRoom is List with a mandatory room.
func (s *BookingService) ListByRoom(ctx context.Context, filter BookingFilter) ([]models.Booking, error) {
	if filter.RoomID == "" {
		return nil, NewValidationError("room_id", "The room_id field is required.")
	}
	return s.List(ctx, filter)
}

func (s *BookingService) filteredQuery(ctx context.Context, f BookingFilter) (*gorm.DB, error) {
	db := s.db.WithContext(ctx)
	verr := &ValidationError{}

	var clientID, roomID uuid.UUID
	var err error
	if f.ClientID != "" {
		if clientID, err = uuid.Parse(f.ClientID); err != nil {
			verr.Add("client_id", "The client_id field must be a valid UUID.")
		}
	}
	if f.RoomID != "" {
		if roomID, err = uuid.Parse(f.RoomID); err != nil {
			verr.Add("room_id", "The room_id field must be a valid UUID.")
		}
	}
	var startDate, endDate time.Time
	if f.StartDate != "" {
		if startDate, err = utils.ParseDate(f.StartDate); err != nil {
			verr.Add("start_date", "The start_date field "+err.Error()+".")
		}
	}
	if f.EndDate != "" {
		if endDate, err = utils.ParseDate(f.EndDate); err != nil {
			verr.Add("end_date", "The end_date field "+err.Error()+".")
		}
	}
	if !startDate.IsZero() && !endDate.IsZero() && endDate.Before(startDate) {
		verr.Add("end_date", "The end_date field must be a date after or equal to start_date.")
	}
	if f.Status != "" && !models.BookingStatus(f.Status).Valid() {
		verr.Add("status", "The selected status is invalid.")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	query := db.Model(&models.Booking{})
	if clientID != uuid.Nil {
		if err := exists(db, &models.Client{}, clientID, "Client"); err != nil {
			return nil, err
		}
		query = query.Where("client_id = ?", clientID)
	}
	if roomID != uuid.Nil {
		if err := exists(db, &models.Room{}, roomID, "Room"); err != nil {
			return nil, err
		}
		query = query.Where("room_id = ?", roomID)
	}
	if !startDate.IsZero() {
		query = query.Where("booking_date >= ?", startDate)
	}
	if !endDate.IsZero() {
		query = query.Where("booking_date <= ?", endDate)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	return query, nil
}

func (s *BookingService) finish(span trace.Span, transition string, err error) {
	observeTransition(transition, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if HTTPStatus(err) >= 500 {
			s.logger.WithError(err).WithField("transition", transition).Error("booking transition failed")
		}
	}
}

func (s *BookingService) logLedger(operation string, client *models.Client, hours decimal.Decimal, bookingID uuid.UUID) {
	s.logger.WithFields(logrus.Fields{
		"operation":  operation,
		"client_id":  client.ID,
		"booking_id": bookingID,
		"hours":      hours.String(),
		"balance":    client.CreditBalance.String(),
	}).Info("ledger updated")
}

// validateSchedule parses the date and the HH:MM range. When required is
// false, nil fields are skipped.
func validateSchedule(verr *ValidationError, date, start, end *string, required bool) (time.Time, string, string) {
	var d time.Time
	var st, et string
	var err error

	check := func(field string, value *string, parse func(string) error) {
		if value == nil || *value == "" {
			if required {
				verr.Add(field, "The "+field+" field is required.")
			}
			return
		}
		if err := parse(*value); err != nil {
			verr.Add(field, "The "+field+" field "+err.Error()+".")
		}
	}
	check("booking_date", date, func(v string) error { d, err = utils.ParseDate(v); return err })
	check("start_time", start, func(v string) error { st, err = utils.ParseClock(v); return err })
	check("end_time", end, func(v string) error { et, err = utils.ParseClock(v); return err })

	if st != "" && et != "" && et <= st {
		verr.Add("end_time", "The end time must be after the start time.")
	}
	return d, st, et
}

func lockBooking(tx *gorm.DB, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&booking, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "Booking"}
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func requireActiveRoom(tx *gorm.DB, id uuid.UUID) error {
	var room models.Room
	err := tx.First(&room, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &NotFoundError{Resource: "Room"}
	}
	if err != nil {
		return err
	}
	if !room.IsActive {
		return NewValidationError("room_id", "The selected room is not active.")
	}
	return nil
}

func exists(db *gorm.DB, model interface{}, id uuid.UUID, resource string) error {
	var count int64
	if err := db.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return &NotFoundError{Resource: resource}
	}
	return nil
}
