package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"roombooking-backend/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AuthConfig points the login proxy at an OAuth2 token endpoint.
type AuthConfig struct {
	TokenEndpoint string
	UserEndpoint  string
	ClientID      string
	ClientSecret  string
}

// LoginResult is returned by login and refresh. User may be nil after a
// refresh when the user could not be resolved.
type LoginResult struct {
	TokenType    string       `json:"token_type"`
	ExpiresIn    *int64       `json:"expires_in"`
	AccessToken  string       `json:"access_token"`
	RefreshToken *string      `json:"refresh_token"`
	User         *models.User `json:"user"`
}

type tokenPayload struct {
	TokenType    string  `json:"token_type"`
	ExpiresIn    *int64  `json:"expires_in"`
	AccessToken  string  `json:"access_token"`
	RefreshToken *string `json:"refresh_token"`
}

var (
	errRefreshUnavailable     = &StatusError{Status: http.StatusInternalServerError, Message: "Error renewing the access token."}
	errInvalidRefreshResponse = &StatusError{Status: http.StatusInternalServerError, Message: "Invalid refresh response."}
)

// AuthService forwards credentials to the token endpoint and attaches the
// matching user to the answer.
type AuthService struct {
	db     *gorm.DB
	logger *logrus.Logger
	cfg    AuthConfig
	client *http.Client
	tokens *TokenService
}

func NewAuthService(db *gorm.DB, logger *logrus.Logger, cfg AuthConfig, tokens *TokenService) *AuthService {
	return &AuthService{
		db:     db,
		logger: logger,
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		tokens: tokens,
	}
}

// Login runs the password grant for email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if s.cfg.ClientID == "" || s.cfg.ClientSecret == "" {
		return nil, ErrOAuthNotConfigured
	}
	form := url.Values{
		"grant_type":    {"password"},
		"client_id":     {s.cfg.ClientID},
		"client_secret": {s.cfg.ClientSecret},
		"username":      {email},
		"password":      {password},
		"scope":         {"*"},
	}
	payload, err := s.postGrant(ctx, form, "Invalid credentials.")
	if err != nil {
		if errors.Is(err, errTransport) {
			return nil, ErrIdentityUnavailable
		}
		if errors.Is(err, errMissingAccessToken) {
			return nil, ErrInvalidIdentityResponse
		}
		return nil, err
	}

	result := resultFrom(payload)
	var user models.User
	err = s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err == nil {
		result.User = &user
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return result, nil
}

// Refresh runs the refresh_token grant. Failing to resolve the user is not an error.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	if s.cfg.ClientID == "" || s.cfg.ClientSecret == "" {
		return nil, ErrOAuthNotConfigured
	}
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {s.cfg.ClientID},
		"client_secret": {s.cfg.ClientSecret},
		"scope":         {"*"},
	}
	payload, err := s.postGrant(ctx, form, "Invalid or expired refresh token.")
	if err != nil {
		if errors.Is(err, errTransport) {
			s.logger.WithError(err).Error("refresh grant failed")
			return nil, errRefreshUnavailable
		}
		if errors.Is(err, errMissingAccessToken) {
			return nil, errInvalidRefreshResponse
		}
		return nil, err
	}

	result := resultFrom(payload)
	user, err := s.resolveUser(ctx, payload.AccessToken)
	if err != nil {
		s.logger.WithError(err).Debug("could not resolve user during refresh")
	}
	result.User = user
	return result, nil
}

// Logout revokes the caller's tokens.
func (s *AuthService) Logout(ctx context.Context, principal models.Principal, refreshToken string) error {
	return s.tokens.Revoke(ctx, principal.UserID, refreshToken)
}

// CurrentUser loads the account behind the principal.
func (s *AuthService) CurrentUser(ctx context.Context, principal models.Principal) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", principal.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "User"}
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

var (
	errTransport          = errors.New("token endpoint unreachable")
	errMissingAccessToken = errors.New("token endpoint response has no access_token")
)

func (s *AuthService) postGrant(ctx context.Context, form url.Values, fallback string) (tokenPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return tokenPayload{}, fmt.Errorf("%w: %v", errTransport, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.WithError(err).WithField("endpoint", s.cfg.TokenEndpoint).Error("token endpoint request failed")
		return tokenPayload{}, fmt.Errorf("%w: %v", errTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return tokenPayload{}, fmt.Errorf("%w: %v", errTransport, err)
	}

	if resp.StatusCode >= 400 {
		return tokenPayload{}, upstreamFailure(resp.StatusCode, body, fallback)
	}

	var payload tokenPayload
	if err := json.Unmarshal(body, &payload); err != nil || payload.AccessToken == "" {
		return tokenPayload{}, errMissingAccessToken
	}
	return payload, nil
}

// upstreamFailure maps a failed grant onto the response we give our caller.
// Credential problems (400 and 401) are reported as 401.
func upstreamFailure(status int, body []byte, fallback string) *UpstreamError {
	var parsed struct {
		Message string      `json:"message"`
		Errors  interface{} `json:"errors"`
	}
	_ = json.Unmarshal(body, &parsed)

	out := &UpstreamError{Status: status, Message: parsed.Message, Errors: map[string]interface{}{}}
	if out.Message == "" {
		out.Message = fallback
	}
	if m, ok := parsed.Errors.(map[string]interface{}); ok {
		out.Errors = m
	}
	if status == http.StatusBadRequest || status == http.StatusUnauthorized {
		out.Status = http.StatusUnauthorized
	}
	return out
}

func resultFrom(p tokenPayload) *LoginResult {
	tokenType := p.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &LoginResult{
		TokenType:    tokenType,
		ExpiresIn:    p.ExpiresIn,
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
	}
}

// resolveUser reads sub from the access token without verifying it, then
// falls back to asking the user endpoint.
func (s *AuthService) resolveUser(ctx context.Context, accessToken string) (*models.User, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err == nil {
		if id, err := uuid.Parse(claims.Subject); err == nil {
			var user models.User
			if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err == nil {
				return &user, nil
			}
		}
	}

	if s.cfg.UserEndpoint == "" {
		return nil, errors.New("user not found from token subject")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.UserEndpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user endpoint returned %d", resp.StatusCode)
	}
	var user models.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}
