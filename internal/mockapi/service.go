// Package mockapi is a development auth backend serving the login, verify
// and refresh endpoints with the wire shapes the portal client expects.
package mockapi

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"go-academic-portal/internal/model"
	"go-academic-portal/pkg/apierror"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

type Options struct {
	UsersFile  string
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int
}

type AuthService struct {
	usersFile  string
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	bcryptCost int
	now        func() time.Time

	mu            sync.RWMutex
	usersByEmail  map[string]model.Account
	usersByID     map[string]model.Account
	refreshTokens map[string]string
}

func NewAuthService(opts Options) (*AuthService, error) {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}

	service := &AuthService{
		usersFile:     strings.TrimSpace(opts.UsersFile),
		jwtSecret:     []byte(opts.JWTSecret),
		accessTTL:     opts.AccessTTL,
		refreshTTL:    opts.RefreshTTL,
		bcryptCost:    opts.BcryptCost,
		now:           time.Now,
		usersByEmail:  map[string]model.Account{},
		usersByID:     map[string]model.Account{},
		refreshTokens: map[string]string{},
	}

	if err := service.loadAccounts(); err != nil {
		return nil, err
	}

	return service, nil
}

func (s *AuthService) Login(email string, password string) (model.LoginResponse, error) {
	s.mu.RLock()
	account, exists := s.usersByEmail[normalizeEmail(email)]
	s.mu.RUnlock()
	if !exists {
		return model.LoginResponse{}, invalidCredentials()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return model.LoginResponse{}, invalidCredentials()
	}

	access, refresh, err := s.issueTokenPair(account)
	if err != nil {
		return model.LoginResponse{}, err
	}

	return model.LoginResponse{
		Token:           access,
		RefreshToken:    refresh,
		TokenDurationMs: s.accessTTL.Milliseconds(),
		Usuario:         account.Wire(),
	}, nil
}

// Refresh rotates the pair: the presented refresh token is spent.
func (s *AuthService) Refresh(refreshToken string) (model.RefreshResponse, error) {
	claims, err := s.ValidateToken(refreshToken, tokenTypeRefresh)
	if err != nil {
		return model.RefreshResponse{}, refreshInvalid("Refresh token inválido o expirado")
	}

	s.mu.Lock()
	ownerID, exists := s.refreshTokens[refreshToken]
	if !exists || ownerID != claims.UserID {
		s.mu.Unlock()
		return model.RefreshResponse{}, refreshInvalid("Refresh token revocado")
	}
	delete(s.refreshTokens, refreshToken)
	account, accountExists := s.usersByID[claims.UserID]
	s.mu.Unlock()

	if !accountExists {
		return model.RefreshResponse{}, refreshInvalid("Usuario no encontrado")
	}

	access, refresh, err := s.issueTokenPair(account)
	if err != nil {
		return model.RefreshResponse{}, err
	}

	return model.RefreshResponse{
		Token:           access,
		RefreshToken:    refresh,
		TokenDurationMs: s.accessTTL.Milliseconds(),
	}, nil
}

func (s *AuthService) ValidateToken(tokenString string, expectedType string) (*model.AuthClaims, error) {
	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apierror.New("UNAUTHORIZED", "invalid token signing method", "", http.StatusUnauthorized)
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return nil, apierror.New("UNAUTHORIZED", "invalid token", "", http.StatusUnauthorized).WithKind(model.ErrTokenInvalid)
	}

	claimsMap, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apierror.New("UNAUTHORIZED", "invalid token claims", "", http.StatusUnauthorized).WithKind(model.ErrTokenInvalid)
	}

	typ, _ := claimsMap["typ"].(string)
	if expectedType != "" && typ != expectedType {
		return nil, apierror.New("UNAUTHORIZED", "invalid token type", "", http.StatusUnauthorized).WithKind(model.ErrTokenInvalid)
	}

	claims := &model.AuthClaims{Type: typ}
	claims.UserID, _ = claimsMap["sub"].(string)
	claims.Email, _ = claimsMap["email"].(string)
	claims.TokenID, _ = claimsMap["jti"].(string)

	if claims.UserID == "" {
		return nil, apierror.New("UNAUTHORIZED", "invalid token subject", "", http.StatusUnauthorized).WithKind(model.ErrTokenInvalid)
	}

	return claims, nil
}

func (s *AuthService) GetUserByID(userID string) (model.WireUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, exists := s.usersByID[userID]
	if !exists {
		return model.WireUser{}, apierror.New("NOT_FOUND", "Usuario no encontrado", userID, http.StatusNotFound).WithKind(model.ErrUserNotFound)
	}

	return account.Wire(), nil
}

func (s *AuthService) issueTokenPair(account model.Account) (string, string, error) {
	now := s.now().UTC()

	access, err := s.signToken(jwt.MapClaims{
		"sub":   account.ID,
		"email": account.Email,
		"typ":   tokenTypeAccess,
		"jti":   uuid.NewString(),
		"iat":   now.Unix(),
		"exp":   now.Add(s.accessTTL).Unix(),
	})
	if err != nil {
		return "", "", err
	}

	refresh, err := s.signToken(jwt.MapClaims{
		"sub": account.ID,
		"typ": tokenTypeRefresh,
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"exp": now.Add(s.refreshTTL).Unix(),
	})
	if err != nil {
		return "", "", err
	}

	s.mu.Lock()
	s.refreshTokens[refresh] = account.ID
	s.mu.Unlock()

	return access, refresh, nil
}

func (s *AuthService) signToken(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func invalidCredentials() error {
	return apierror.New("INVALID_CREDENTIALS", "Credenciales incorrectas", "", http.StatusUnauthorized).WithKind(model.ErrInvalidCredentials)
}

func refreshInvalid(message string) error {
	return apierror.New("REFRESH_INVALID", message, "", http.StatusUnauthorized).WithKind(model.ErrRefreshInvalid)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
