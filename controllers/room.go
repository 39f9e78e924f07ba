package controllers

import (
	"net/http"

	"roombooking-backend/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type RoomController struct {
	Rooms  *services.RoomService
	Logger *logrus.Logger
}

// List returns active rooms only.
func (rc *RoomController) List(c *gin.Context) {
	rooms, err := rc.Rooms.ListActive(c.Request.Context())
	if err != nil {
		respondServiceError(c, rc.Logger, err)
		return
	}
	c.JSON(http.StatusOK, rooms)
}

func (rc *RoomController) Get(c *gin.Context) {
	id, ok := pathID(c, "Room")
	if !ok {
		return
	}
	room, err := rc.Rooms.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, rc.Logger, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (rc *RoomController) Create(c *gin.Context) {
	var input services.RoomInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindingError(c, err)
		return
	}
	room, err := rc.Rooms.Create(c.Request.Context(), principal(c), input)
	if err != nil {
		respondServiceError(c, rc.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

func (rc *RoomController) Update(c *gin.Context) {
	id, ok := pathID(c, "Room")
	if !ok {
		return
	}
	var input services.RoomInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindingError(c, err)
		return
	}
	room, err := rc.Rooms.Update(c.Request.Context(), principal(c), id, input)
	if err != nil {
		respondServiceError(c, rc.Logger, err)
		return
	}
	c.JSON(http.StatusOK, room)
}
