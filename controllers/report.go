// controllers/report.go
package controllers

import (
	"fmt"
	"net/http"
	"strconv"

	"roombooking-backend/services"
	"roombooking-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportController handles all reporting functions
type ReportController struct {
	Reports *services.ReportService
	Logger  *logrus.Logger
	Now     utils.Clock
}

func (rc *ReportController) PopularDays(c *gin.Context) {
	stats, err := rc.Reports.PopularDays(c.Request.Context())
	if err != nil {
		respondServiceError(c, rc.Logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (rc *ReportController) PopularTimes(c *gin.Context) {
	stats, err := rc.Reports.PopularTimes(c.Request.Context())
	if err != nil {
		respondServiceError(c, rc.Logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (rc *ReportController) PopularRooms(c *gin.Context) {
	stats, err := rc.Reports.PopularRooms(c.Request.Context())
	if err != nil {
		respondServiceError(c, rc.Logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (rc *ReportController) Birthdays(c *gin.Context) {
	month := 0
	if raw := c.Query("month"); raw != "" {
		m, err := strconv.Atoi(raw)
		if err != nil {
			respondServiceError(c, rc.Logger, services.NewValidationError("month", "The month field must be an integer."))
			return
		}
		month = m
	}

	clients, err := rc.Reports.Birthdays(c.Request.Context(), month)
	if err != nil {
		respondServiceError(c, rc.Logger, err)
		return
	}
	c.JSON(http.StatusOK, clients)
}

func (rc *ReportController) BirthdaysToday(c *gin.Context) {
	clients, err := rc.Reports.BirthdaysToday(c.Request.Context())
	if err != nil {
		respondServiceError(c, rc.Logger, err)
		return
	}
	c.JSON(http.StatusOK, clients)
}

// ExportBookings streams the filtered booking list as a spreadsheet.
func (rc *ReportController) ExportBookings(c *gin.Context) {
	var filter services.BookingFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		respondBindingError(c, err)
		return
	}

	data, err := rc.Reports.ExportBookings(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, rc.Logger, err)
		return
	}

	filename := fmt.Sprintf("bookings-%s.xlsx", rc.Now().Format(utils.DateLayout))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}
