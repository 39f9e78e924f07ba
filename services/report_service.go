// services/report_service.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"roombooking-backend/models"
	"roombooking-backend/utils"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// ReportService answers the read-only usage reports. Nothing here writes.
type ReportService struct {
	db       *gorm.DB
	bookings *BookingService
	now      utils.Clock
}

func NewReportService(db *gorm.DB, bookings *BookingService, clock utils.Clock) *ReportService {
	return &ReportService{db: db, bookings: bookings, now: clock}
}

type DayStat struct {
	Day           string `json:"day"`
	TotalBookings int64  `json:"total_bookings"`
}

type TimeStat struct {
	StartTime     string `json:"start_time"`
	TotalBookings int64  `json:"total_bookings"`
}

type RoomStat struct {
	models.Room
	BookingsCount int64 `json:"bookings_count"`
}

// PopularDays counts non-cancelled bookings per weekday, busiest first.
// The weekday grouping runs here because postgres and sqlite have no common
// weekday function; it loads one date per booking, which holds at the
// volumes a single office sees.
func (s *ReportService) PopularDays(ctx context.Context) ([]DayStat, error) {
	var dates []time.Time
	if err := s.db.WithContext(ctx).Model(&models.Booking{}).
		Where("status <> ?", models.StatusCancelled).
		Pluck("booking_date", &dates).Error; err != nil {
		return nil, err
	}

	var counts [7]int64
	for _, d := range dates {
		counts[d.Weekday()]++
	}

	stats := []DayStat{}
	order := []time.Weekday{}
	for wd, n := range counts {
		if n > 0 {
			order = append(order, time.Weekday(wd))
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	for _, wd := range order {
		stats = append(stats, DayStat{Day: wd.String(), TotalBookings: counts[wd]})
	}
	return stats, nil
}

// PopularTimes returns the ten most booked start times.
func (s *ReportService) PopularTimes(ctx context.Context) ([]TimeStat, error) {
	stats := []TimeStat{}
	err := s.db.WithContext(ctx).Model(&models.Booking{}).
		Select("start_time, COUNT(*) AS total_bookings").
		Where("status <> ?", models.StatusCancelled).
		Group("start_time").
		Order("total_bookings DESC").Order("start_time ASC").
		Limit(10).
		Scan(&stats).Error
	return stats, err
}

// PopularRooms lists every room with its non-cancelled booking count.
func (s *ReportService) PopularRooms(ctx context.Context) ([]RoomStat, error) {
	var rooms []models.Room
	if err := s.db.WithContext(ctx).Find(&rooms).Error; err != nil {
		return nil, err
	}
	sort.SliceStable(rooms, func(i, j int) bool {
		return roomNumberLess(rooms[i].Number, rooms[j].Number)
	})

	type row struct {
		RoomID uuid.UUID
		Total  int64
	}
	var rows []row
	if err := s.db.WithContext(ctx).Model(&models.Booking{}).
		Select("room_id, COUNT(*) AS total").
		Where("status <> ?", models.StatusCancelled).
		Group("room_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[uuid.UUID]int64, len(rows))
	for _, r := range rows {
		counts[r.RoomID] = r.Total
	}

	stats := make([]RoomStat, 0, len(rooms))
	for _, room := range rooms {
		stats = append(stats, RoomStat{Room: room, BookingsCount: counts[room.ID]})
	}
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].BookingsCount > stats[j].BookingsCount
	})
	return stats, nil
}

// Birthdays returns clients born in month (1-12); zero means the current month.
func (s *ReportService) Birthdays(ctx context.Context, month int) ([]models.Client, error) {
	if month == 0 {
		month = int(s.now().Month())
	}
	if month < 1 || month > 12 {
		return nil, NewValidationError("month", "The month field must be between 1 and 12.")
	}
	return s.birthdaysMatching(ctx, func(t time.Time) bool {
		return int(t.Month()) == month
	})
}

func (s *ReportService) BirthdaysToday(ctx context.Context) ([]models.Client, error) {
	today := s.now()
	return s.birthdaysMatching(ctx, func(t time.Time) bool {
		return t.Month() == today.Month() && t.Day() == today.Day()
	})
}

func (s *ReportService) birthdaysMatching(ctx context.Context, match func(time.Time) bool) ([]models.Client, error) {
	var clients []models.Client
	if err := s.db.WithContext(ctx).Where("birth_date IS NOT NULL").Order("name ASC").Find(&clients).Error; err != nil {
		return nil, err
	}
	out := []models.Client{}
	for _, c := range clients {
		if match(*c.BirthDate) {
			out = append(out, c)
		}
	}
	return out, nil
}

var exportHeaders = []string{"Date", "Start", "End", "Room", "Client", "Email", "Hours", "Status", "Notes"}

// ExportBookings renders the filtered booking listing as an xlsx workbook.
func (s *ReportService) ExportBookings(ctx context.Context, filter BookingFilter) ([]byte, error) {
	bookings, err := s.bookings.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Bookings"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}

	total := 0.0
	for i, b := range bookings {
		row := i + 2
		hours, _ := b.HoursBooked.Float64()
		total += hours
		values := []interface{}{
			b.BookingDate.Format(utils.DateLayout),
			b.StartTime,
			b.EndTime,
			roomLabel(b.Room),
			clientName(b.Client),
			clientEmail(b.Client),
			hours,
			string(b.Status),
			b.Notes,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(sheet, cell, v)
		}
	}

	summaryRow := len(bookings) + 3
	f.SetCellValue(sheet, fmt.Sprintf("A%d", summaryRow), "Total hours")
	f.SetCellValue(sheet, fmt.Sprintf("G%d", summaryRow), total)

	f.SetColWidth(sheet, "A", "A", 12)
	f.SetColWidth(sheet, "D", "F", 24)
	f.SetColWidth(sheet, "I", "I", 40)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func roomLabel(r *models.Room) string {
	if r == nil {
		return ""
	}
	return r.Number + " " + r.Name
}

func clientName(c *models.Client) string {
	if c == nil {
		return ""
	}
	return c.Name
}

func clientEmail(c *models.Client) string {
	if c == nil {
		return ""
	}
	return c.Email
}
