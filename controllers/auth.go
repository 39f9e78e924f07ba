package controllers

import (
	"errors"
	"net/http"

	"roombooking-backend/services"
	"roombooking-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshInput struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type LogoutInput struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenRequest is the form body of the OAuth2 token endpoint.
type TokenRequest struct {
	GrantType    string `form:"grant_type"`
	ClientID     string `form:"client_id"`
	ClientSecret string `form:"client_secret"`
	Username     string `form:"username"`
	Password     string `form:"password"`
	RefreshToken string `form:"refresh_token"`
	Scope        string `form:"scope"`
}

type AuthController struct {
	Auth   *services.AuthService
	Tokens *services.TokenService
	Logger *logrus.Logger
}

func (ac *AuthController) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindingError(c, err)
		return
	}

	result, err := ac.Auth.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		respondServiceError(c, ac.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (ac *AuthController) Refresh(c *gin.Context) {
	var input RefreshInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindingError(c, err)
		return
	}

	result, err := ac.Auth.Refresh(c.Request.Context(), input.RefreshToken)
	if err != nil {
		respondServiceError(c, ac.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (ac *AuthController) User(c *gin.Context) {
	user, err := ac.Auth.CurrentUser(c.Request.Context(), principal(c))
	if err != nil {
		respondServiceError(c, ac.Logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (ac *AuthController) Logout(c *gin.Context) {
	var input LogoutInput
	// The body is optional.
	_ = c.ShouldBindJSON(&input)

	if err := ac.Auth.Logout(c.Request.Context(), principal(c), input.RefreshToken); err != nil {
		respondServiceError(c, ac.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully."})
}

// Token answers the password and refresh_token grants.
func (ac *AuthController) Token(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBind(&req); err != nil {
		oauthError(c, services.ErrInvalidRequest, "The request is missing a required parameter.")
		return
	}

	var (
		resp services.TokenResponse
		err  error
	)
	switch req.GrantType {
	case "password":
		resp, err = ac.Tokens.PasswordGrant(c.Request.Context(), req.ClientID, req.ClientSecret, req.Username, req.Password)
	case "refresh_token":
		resp, err = ac.Tokens.RefreshGrant(c.Request.Context(), req.ClientID, req.ClientSecret, req.RefreshToken)
	default:
		err = services.ErrUnsupportedGrant
	}
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidClient):
			oauthError(c, err, "Client authentication failed.")
		case errors.Is(err, services.ErrInvalidGrant) && req.GrantType == "refresh_token":
			oauthError(c, err, "The refresh token is invalid.")
		case errors.Is(err, services.ErrInvalidGrant):
			oauthError(c, err, "The user credentials were incorrect.")
		case errors.Is(err, services.ErrInvalidRequest):
			oauthError(c, err, "The request is missing a required parameter.")
		case errors.Is(err, services.ErrUnsupportedGrant):
			oauthError(c, err, "The authorization grant type is not supported.")
		default:
			respondServiceError(c, ac.Logger, err)
		}
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, resp)
}

func oauthError(c *gin.Context, code error, message string) {
	c.JSON(services.HTTPStatus(code), gin.H{
		"error":             code.Error(),
		"error_description": message,
		"message":           message,
	})
}

var _ utils.TokenVerifier = (*services.TokenService)(nil)
