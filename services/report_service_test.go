package services

import (
	"bytes"
	"context"
	"reflect"
	"testing"
	"time"

	"roombooking-backend/models"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

type reportFixture struct {
	db      *gorm.DB
	reports *ReportService
	rooms   []*models.Room
}

// newReportFixture books 09:00 twice on Wednesday 2025-11-12, 10:00 on
// Thursday and a cancelled 09:00 on Friday.
func newReportFixture(t *testing.T) *reportFixture {
	t.Helper()
	db := newTestDB(t)
	bookings := NewBookingService(db, quietLogger(), nil, fixedClock)
	client := seedClient(t, db, "Ana", "20", nil)
	r101 := seedRoom(t, db, "101", true)
	r202 := seedRoom(t, db, "202", true)
	r303 := seedRoom(t, db, "303", true)
	ctx := context.Background()

	book := func(room *models.Room, date, start, end string) *models.Booking {
		t.Helper()
		b, err := bookings.Create(ctx, staff, CreateBookingInput{
			ClientID: client.ID, RoomID: room.ID,
			BookingDate: date, StartTime: start, EndTime: end,
			HoursBooked: decPtr("1"),
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		return b
	}
	book(r101, "2025-11-12", "09:00", "10:00")
	book(r202, "2025-11-12", "09:00", "10:00")
	book(r101, "2025-11-13", "10:00", "11:00")
	cancelled := book(r303, "2025-11-14", "09:00", "10:00")
	if _, err := bookings.Cancel(ctx, staff, cancelled.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	return &reportFixture{
		db:      db,
		reports: NewReportService(db, bookings, fixedClock),
		rooms:   []*models.Room{r101, r202, r303},
	}
}

func TestReportService_PopularDays(t *testing.T) {
	f := newReportFixture(t)
	got, err := f.reports.PopularDays(context.Background())
	if err != nil {
		t.Fatalf("PopularDays: %v", err)
	}
	want := []DayStat{{Day: "Wednesday", TotalBookings: 2}, {Day: "Thursday", TotalBookings: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("PopularDays() = %+v, want %+v", got, want)
	}
}

func TestReportService_PopularTimes(t *testing.T) {
	f := newReportFixture(t)
	got, err := f.reports.PopularTimes(context.Background())
	if err != nil {
		t.Fatalf("PopularTimes: %v", err)
	}
	want := []TimeStat{{StartTime: "09:00", TotalBookings: 2}, {StartTime: "10:00", TotalBookings: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("PopularTimes() = %+v, want %+v", got, want)
	}
}

func TestReportService_PopularRooms(t *testing.T) {
	f := newReportFixture(t)
	got, err := f.reports.PopularRooms(context.Background())
	if err != nil {
		t.Fatalf("PopularRooms: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("PopularRooms() returned %d rooms, want 3", len(got))
	}
	wantNumbers := []string{"101", "202", "303"}
	wantCounts := []int64{2, 1, 0}
	for i, stat := range got {
		if stat.Number != wantNumbers[i] || stat.BookingsCount != wantCounts[i] {
			t.Errorf("PopularRooms()[%d] = %s/%d, want %s/%d", i, stat.Number, stat.BookingsCount, wantNumbers[i], wantCounts[i])
		}
	}
}

func TestReportService_Birthdays(t *testing.T) {
	db := newTestDB(t)
	reports := NewReportService(db, NewBookingService(db, quietLogger(), nil, fixedClock), fixedClock)
	ctx := context.Background()

	withBirthday := func(name string, d time.Time) {
		c := seedClient(t, db, name, "0", nil)
		if err := db.Model(c).Update("birth_date", d).Error; err != nil {
			t.Fatalf("set birth_date: %v", err)
		}
	}
	withBirthday("Zeca", time.Date(1985, time.November, 25, 0, 0, 0, 0, time.UTC))
	withBirthday("Bia", time.Date(1990, time.November, 10, 0, 0, 0, 0, time.UTC))
	withBirthday("Caio", time.Date(1992, time.March, 10, 0, 0, 0, 0, time.UTC))
	seedClient(t, db, "NoDate", "0", nil)

	current, err := reports.Birthdays(ctx, 0)
	if err != nil {
		t.Fatalf("Birthdays(0): %v", err)
	}
	if got := names(current); !reflect.DeepEqual(got, []string{"Bia", "Zeca"}) {
		t.Errorf("Birthdays(0) = %v, want [Bia Zeca]", got)
	}

	march, _ := reports.Birthdays(ctx, 3)
	if got := names(march); !reflect.DeepEqual(got, []string{"Caio"}) {
		t.Errorf("Birthdays(3) = %v, want [Caio]", got)
	}

	for _, month := range []int{-1, 13} {
		_, err := reports.Birthdays(ctx, month)
		if fields := validationFields(t, err); len(fields["month"]) == 0 {
			t.Errorf("Birthdays(%d) fields = %v, want month error", month, fields)
		}
	}

	today, _ := reports.BirthdaysToday(ctx)
	if got := names(today); !reflect.DeepEqual(got, []string{"Bia"}) {
		t.Errorf("BirthdaysToday() = %v, want [Bia]", got)
	}
}

func TestReportService_ExportBookings(t *testing.T) {
	f := newReportFixture(t)
	data, err := f.reports.ExportBookings(context.Background(), BookingFilter{Status: "pending"})
	if err != nil {
		t.Fatalf("ExportBookings: %v", err)
	}

	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer book.Close()

	rows, err := book.GetRows("Bookings")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	// header, three bookings, a blank row, the total
	if len(rows) != 6 {
		t.Fatalf("rows = %d, want 6: %v", len(rows), rows)
	}
	if !reflect.DeepEqual(rows[0], exportHeaders) {
		t.Errorf("header = %v, want %v", rows[0], exportHeaders)
	}
	if rows[1][0] != "2025-11-12" {
		t.Errorf("first row = %v, want 2025-11-12 first", rows[1])
	}
	if rows[3][0] != "2025-11-13" || rows[3][3] != "101 Room 101" || rows[3][6] != "1" {
		t.Errorf("third row = %v", rows[3])
	}
	if rows[5][0] != "Total hours" || rows[5][6] != "3" {
		t.Errorf("total row = %v, want Total hours 3", rows[5])
	}
}

func TestReportService_ExportRejectsBadFilter(t *testing.T) {
	f := newReportFixture(t)
	_, err := f.reports.ExportBookings(context.Background(), BookingFilter{Status: "archived"})
	if fields := validationFields(t, err); len(fields["status"]) == 0 {
		t.Errorf("fields = %v, want status error", fields)
	}
}
