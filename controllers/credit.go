package controllers

import (
	"net/http"

	"roombooking-backend/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type AddCreditInput struct {
	ClientID uuid.UUID        `json:"client_id"`
	Hours    *decimal.Decimal `json:"hours"`
}

type CreditController struct {
	Credits *services.CreditService
	Logger  *logrus.Logger
}

func (cc *CreditController) Balance(c *gin.Context) {
	raw := c.Query("client_id")
	if raw == "" {
		respondServiceError(c, cc.Logger, services.NewValidationError("client_id", "The client_id field is required."))
		return
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		respondServiceError(c, cc.Logger, services.NewValidationError("client_id", "The client_id field must be a valid UUID."))
		return
	}

	summary, err := cc.Credits.Balance(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, cc.Logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (cc *CreditController) Add(c *gin.Context) {
	var input AddCreditInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindingError(c, err)
		return
	}

	verr := &services.ValidationError{}
	if input.ClientID == uuid.Nil {
		verr.Add("client_id", "The client_id field is required.")
	}
	if input.Hours == nil {
		verr.Add("hours", "The hours field is required.")
	}
	if err := verr.OrNil(); err != nil {
		respondServiceError(c, cc.Logger, err)
		return
	}

	client, err := cc.Credits.AddCredit(c.Request.Context(), principal(c), input.ClientID, *input.Hours)
	if err != nil {
		respondServiceError(c, cc.Logger, err)
		return
	}
	c.JSON(http.StatusOK, client)
}
