package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"roombooking-backend/models"
	"roombooking-backend/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// TokenConfig carries the issuer settings.
type TokenConfig struct {
	Secret       string
	ClientID     string
	ClientSecret string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}

// AccessClaims is the payload of every access token we sign.
type AccessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenResponse is the OAuth2 token endpoint body.
type TokenResponse struct {
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenService is the built-in OAuth2 issuer. It answers the password and
// refresh_token grants, and verifies bearer tokens for the API.
type TokenService struct {
	db     *gorm.DB
	logger *logrus.Logger
	cfg    TokenConfig
	now    utils.Clock
}

func NewTokenService(db *gorm.DB, logger *logrus.Logger, cfg TokenConfig, clock utils.Clock) *TokenService {
	return &TokenService{db: db, logger: logger, cfg: cfg, now: clock}
}

func (s *TokenService) authenticateClient(clientID, clientSecret string) error {
	if s.cfg.ClientID == "" || s.cfg.ClientSecret == "" {
		return ErrOAuthNotConfigured
	}
	idOK := subtle.ConstantTimeCompare([]byte(clientID), []byte(s.cfg.ClientID)) == 1
	secretOK := subtle.ConstantTimeCompare([]byte(clientSecret), []byte(s.cfg.ClientSecret)) == 1
	if !idOK || !secretOK {
		return ErrInvalidClient
	}
	return nil
}

// PasswordGrant exchanges user credentials for a token pair.
func (s *TokenService) PasswordGrant(ctx context.Context, clientID, clientSecret, username, password string) (TokenResponse, error) {
	if err := s.authenticateClient(clientID, clientSecret); err != nil {
		return TokenResponse{}, err
	}
	if username == "" || password == "" {
		return TokenResponse{}, ErrInvalidRequest
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(username))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return TokenResponse{}, ErrInvalidGrant
	}
	if err != nil {
		return TokenResponse{}, err
	}
	if !utils.CheckPasswordHash(password, user.Password) {
		return TokenResponse{}, ErrInvalidGrant
	}

	var resp TokenResponse
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		resp, err = s.issue(tx, &user)
		if err != nil {
			return err
		}
		now := s.now()
		return tx.Model(&user).Update("last_login", &now).Error
	})
	if err != nil {
		return TokenResponse{}, err
	}

	s.logger.WithFields(logrus.Fields{"user_id": user.ID}).Info("password grant issued")
	return resp, nil
}

// RefreshGrant rotates a refresh token. The old pair is revoked.
func (s *TokenService) RefreshGrant(ctx context.Context, clientID, clientSecret, refreshToken string) (TokenResponse, error) {
	if err := s.authenticateClient(clientID, clientSecret); err != nil {
		return TokenResponse{}, err
	}
	if refreshToken == "" {
		return TokenResponse{}, ErrInvalidRequest
	}

	var resp TokenResponse
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stored models.RefreshToken
		err := tx.Where("token_hash = ?", hashToken(refreshToken)).First(&stored).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidGrant
		}
		if err != nil {
			return err
		}
		if stored.Revoked || !s.now().Before(stored.ExpiresAt) {
			return ErrInvalidGrant
		}

		var access models.AccessToken
		if err := tx.First(&access, "id = ?", stored.AccessTokenID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidGrant
			}
			return err
		}
		var user models.User
		if err := tx.First(&user, "id = ?", access.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidGrant
			}
			return err
		}

		if err := tx.Model(&stored).Update("revoked", true).Error; err != nil {
			return err
		}
		if err := tx.Model(&access).Update("revoked", true).Error; err != nil {
			return err
		}
		resp, err = s.issue(tx, &user)
		return err
	})
	if err != nil {
		return TokenResponse{}, err
	}
	return resp, nil
}

func (s *TokenService) issue(tx *gorm.DB, user *models.User) (TokenResponse, error) {
	now := s.now()
	access := models.AccessToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.cfg.AccessTTL),
	}
	claims := AccessClaims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        access.ID.String(),
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(access.ExpiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return TokenResponse{}, fmt.Errorf("sign access token: %w", err)
	}

	raw, err := randomToken()
	if err != nil {
		return TokenResponse{}, err
	}
	refresh := models.RefreshToken{
		ID:            uuid.New(),
		AccessTokenID: access.ID,
		TokenHash:     hashToken(raw),
		ExpiresAt:     now.Add(s.cfg.RefreshTTL),
	}

	if err := tx.Create(&access).Error; err != nil {
		return TokenResponse{}, err
	}
	if err := tx.Create(&refresh).Error; err != nil {
		return TokenResponse{}, err
	}

	return TokenResponse{
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.cfg.AccessTTL / time.Second),
		AccessToken:  signed,
		RefreshToken: raw,
	}, nil
}

// Verify checks the signature and expiry, then that the token id was not revoked.
func (s *TokenService) Verify(ctx context.Context, raw string) (models.Principal, error) {
	token, err := jwt.ParseWithClaims(raw, &AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.cfg.Secret), nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return models.Principal{}, err
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return models.Principal{}, errors.New("invalid token claims")
	}

	jti, err := uuid.Parse(claims.ID)
	if err != nil {
		return models.Principal{}, errors.New("invalid token id")
	}
	var access models.AccessToken
	if err := s.db.WithContext(ctx).First(&access, "id = ?", jti).Error; err != nil {
		return models.Principal{}, err
	}
	if access.Revoked {
		return models.Principal{}, errors.New("token revoked")
	}

	return models.Principal{UserID: access.UserID, Email: claims.Email, Role: claims.Role}, nil
}

// Revoke invalidates every access token of the user and, when given, the refresh token.
func (s *TokenService) Revoke(ctx context.Context, userID uuid.UUID, refreshToken string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.AccessToken{}).
			Where("user_id = ?", userID).
			Update("revoked", true).Error; err != nil {
			return err
		}
		if refreshToken == "" {
			return nil
		}
		return tx.Model(&models.RefreshToken{}).
			Where("token_hash = ?", hashToken(refreshToken)).
			Update("revoked", true).Error
	})
}

// CreateUser stores a user with a bcrypt hashed password.
func (s *TokenService) CreateUser(ctx context.Context, name, email, password, role string) (*models.User, error) {
	verr := &ValidationError{}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		verr.Add("email", "The email field is required.")
	}
	if len(password) < 8 {
		verr.Add("password", "The password field must be at least 8 characters.")
	}
	if role != models.RoleAdmin && role != models.RoleStaff {
		verr.Add("role", "The selected role is invalid.")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := models.User{Name: name, Email: email, Password: hash, Role: role}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func randomToken() (string, error) {
	buf := make([]byte, 40)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
