package controllers

import (
	"net/http"

	"roombooking-backend/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type ClientController struct {
	Clients *services.ClientService
	Logger  *logrus.Logger
}

func (cc *ClientController) List(c *gin.Context) {
	var q services.ClientQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindingError(c, err)
		return
	}

	page, err := cc.Clients.List(c.Request.Context(), q)
	if err != nil {
		respondServiceError(c, cc.Logger, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (cc *ClientController) Create(c *gin.Context) {
	var input services.CreateClientInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindingError(c, err)
		return
	}

	client, err := cc.Clients.Create(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, cc.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, client)
}

func (cc *ClientController) Get(c *gin.Context) {
	id, ok := pathID(c, "Client")
	if !ok {
		return
	}

	client, err := cc.Clients.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, cc.Logger, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

func (cc *ClientController) Update(c *gin.Context) {
	id, ok := pathID(c, "Client")
	if !ok {
		return
	}
	var input services.UpdateClientInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindingError(c, err)
		return
	}

	client, err := cc.Clients.Update(c.Request.Context(), id, input)
	if err != nil {
		respondServiceError(c, cc.Logger, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

func (cc *ClientController) Delete(c *gin.Context) {
	id, ok := pathID(c, "Client")
	if !ok {
		return
	}

	if err := cc.Clients.Delete(c.Request.Context(), id); err != nil {
		respondServiceError(c, cc.Logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
