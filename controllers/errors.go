package controllers

import (
	"errors"
	"net/http"

	"roombooking-backend/models"
	"roombooking-backend/services"
	"roombooking-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// respondServiceError writes err the way the API reports each error kind.
// Unexpected errors are logged and hidden behind a generic message.
func respondServiceError(c *gin.Context, logger *logrus.Logger, err error) {
	var verr *services.ValidationError
	var nf *services.NotFoundError
	var up *services.UpstreamError
	var se *services.StatusError

	switch {
	case errors.As(err, &verr):
		utils.RespondWithValidationError(c, verr.Error(), verr.Fields)
	case errors.As(err, &nf):
		utils.RespondWithError(c, http.StatusNotFound, nf.Resource+" not found.")
	case errors.As(err, &up):
		c.JSON(up.Status, gin.H{"message": up.Message, "errors": up.Errors})
	case errors.As(err, &se):
		if se.Status >= http.StatusInternalServerError {
			logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		}
		utils.RespondWithError(c, se.Status, se.Message)
	default:
		logger.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("unexpected error")
		utils.RespondWithError(c, http.StatusInternalServerError, "Server Error")
	}
}

// respondBindingError turns a gin binding failure into a 422.
func respondBindingError(c *gin.Context, err error) {
	fields := utils.ValidationFields(err)
	verr := &services.ValidationError{Fields: fields}
	utils.RespondWithValidationError(c, verr.Error(), fields)
}

// pathID parses the :id parameter. A malformed id can never match a row, so it is a 404.
func pathID(c *gin.Context, resource string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondWithError(c, http.StatusNotFound, resource+" not found.")
		return uuid.Nil, false
	}
	return id, true
}

func principal(c *gin.Context) models.Principal {
	p, _ := utils.CurrentPrincipal(c)
	return p
}
