package controllers

import (
	"net/http"

	"roombooking-backend/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type BookingController struct {
	Bookings *services.BookingService
	Logger   *logrus.Logger
}

// bindFilter accepts the filter as a JSON body; an empty body means no filter.
func bindFilter(c *gin.Context, filter *services.BookingFilter) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(filter); err != nil {
		respondBindingError(c, err)
		return false
	}
	return true
}

func (bc *BookingController) List(c *gin.Context) {
	var filter services.BookingFilter
	if !bindFilter(c, &filter) {
		return
	}
	bookings, err := bc.Bookings.List(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, bc.Logger, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

func (bc *BookingController) ListByRoom(c *gin.Context) {
	var filter services.BookingFilter
	if !bindFilter(c, &filter) {
		return
	}
	bookings, err := bc.Bookings.ListByRoom(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, bc.Logger, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

func (bc *BookingController) Create(c *gin.Context) {
	var input services.CreateBookingInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindingError(c, err)
		return
	}
	booking, err := bc.Bookings.Create(c.Request.Context(), principal(c), input)
	if err != nil {
		respondServiceError(c, bc.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

func (bc *BookingController) Get(c *gin.Context) {
	id, ok := pathID(c, "Booking")
	if !ok {
		return
	}
	booking, err := bc.Bookings.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, bc.Logger, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

func (bc *BookingController) Update(c *gin.Context) {
	id, ok := pathID(c, "Booking")
	if !ok {
		return
	}
	var input services.UpdateBookingInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindingError(c, err)
		return
	}
	booking, err := bc.Bookings.Update(c.Request.Context(), principal(c), id, input)
	if err != nil {
		respondServiceError(c, bc.Logger, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

func (bc *BookingController) Cancel(c *gin.Context) {
	id, ok := pathID(c, "Booking")
	if !ok {
		return
	}
	already, err := bc.Bookings.Cancel(c.Request.Context(), principal(c), id)
	if err != nil {
		respondServiceError(c, bc.Logger, err)
		return
	}
	if already {
		c.JSON(http.StatusOK, gin.H{"message": "The booking is already cancelled."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Booking cancelled successfully."})
}
