package services

import (
	"context"
	"time"

	"nfl-pickem/models"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidToken is returned for tokens that fail validation
var ErrInvalidToken = errors.New("invalid token")

// AuthService validates the bearer tokens issued by the account service and
// the admin API key. Users are identified, never registered, here.
type AuthService struct {
	users        UserDirectory
	jwtSecret    []byte
	adminKeyHash []byte
	tokenExpiry  time.Duration
}

// JWTClaims represents the claims in our JWT token
type JWTClaims struct {
	UserID int    `json:"user_id"`
	Name   string `json:"name,omitempty"`
	Admin  bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// NewAuthService creates a new authentication service. An empty adminKeyHash disables key auth.
func NewAuthService(users UserDirectory, jwtSecret, adminKeyHash string) *AuthService {
	return &AuthService{
		users:        users,
		jwtSecret:    []byte(jwtSecret),
		adminKeyHash: []byte(adminKeyHash),
		tokenExpiry:  24 * 30 * 6 * time.Hour, // 6 months
	}
}

// GenerateToken creates a signed token for the user
func (a *AuthService) GenerateToken(user models.User) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		UserID: user.ID,
		Name:   user.DisplayName,
		Admin:  user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "nfl-pickem",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

// ValidateToken validates a JWT token and returns the claims
func (a *AuthService) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid token signing method")
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return nil, errors.Mark(err, ErrInvalidToken)
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid && claims.UserID > 0 {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// GetUserFromToken validates the token and resolves the user. Directory
// entries win over the token's name; the admin flag is taken from either.
func (a *AuthService) GetUserFromToken(ctx context.Context, tokenString string) (*models.User, error) {
	claims, err := a.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	user := models.User{ID: claims.UserID, DisplayName: claims.Name, IsAdmin: claims.Admin}
	found, err := a.users.FindByIDs(ctx, []int{claims.UserID})
	if err != nil {
		return nil, errors.Wrap(err, "look up token user")
	}
	if entry, ok := found[claims.UserID]; ok {
		entry.IsAdmin = entry.IsAdmin || claims.Admin
		user = entry
	}
	if user.DisplayName == "" {
		user.DisplayName = models.FallbackUser(user.ID).DisplayName
	}
	return &user, nil
}

// CheckAdminKey compares key against the configured bcrypt hash
func (a *AuthService) CheckAdminKey(key string) bool {
	if len(a.adminKeyHash) == 0 || key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(a.adminKeyHash, []byte(key)) == nil
}
