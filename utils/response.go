package utils

import (
	"github.com/gin-gonic/gin"
)

func RespondWithError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"message": message})
}

// RespondWithValidationError writes the 422 body with per-field messages.
func RespondWithValidationError(c *gin.Context, message string, fields map[string][]string) {
	c.JSON(422, gin.H{
		"message": message,
		"errors":  fields,
	})
}
