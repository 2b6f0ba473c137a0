package services

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/yungbote/mindtrace-backend/internal/domain/assessment"
	"github.com/yungbote/mindtrace-backend/internal/platform/apierr"
	"github.com/yungbote/mindtrace-backend/internal/platform/logger"
)

type IssuedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type AuthService interface {
	// Authenticate checks the shared passcode and issues a bearer token.
	Authenticate(ctx context.Context, passcode string) (IssuedToken, error)
	// ValidateToken returns the token itself when it is signed by us and unexpired.
	ValidateToken(ctx context.Context, token string) (string, error)
	AssertOwnership(s *assessment.Session, token string) error
	TokenTTL() time.Duration
}

type JWTClaims struct {
	jwt.RegisteredClaims
}

const tokenIssuer = "mindtrace"

type authService struct {
	log          *logger.Logger
	passcodeHash []byte
	jwtSecretKey []byte
	tokenTTL     time.Duration
	now          func() time.Time
}

// NewAuthService hashes the passcode once with bcrypt; attempts are compared
// against the hash. An empty passcode leaves the service unable to issue tokens.
func NewAuthService(log *logger.Logger, passcode, jwtSecretKey string, tokenTTL time.Duration) (AuthService, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if strings.TrimSpace(jwtSecretKey) == "" {
		return nil, fmt.Errorf("jwt secret key required")
	}
	var hash []byte
	if passcode = strings.TrimSpace(passcode); passcode != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(passcode), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash passcode: %w", err)
		}
		hash = h
	}
	return &authService{
		log:          log.With("service", "AuthService"),
		passcodeHash: hash,
		jwtSecretKey: []byte(jwtSecretKey),
		tokenTTL:     tokenTTL,
		now:          time.Now,
	}, nil
}

var errPasscodeRejected = errors.New("초대 코드가 올바르지 않습니다.")

// IsPasscodeRejected reports whether err is a wrong-passcode failure, the only
// failure the auth rate limiter counts toward its cooldown.
func IsPasscodeRejected(err error) bool { return errors.Is(err, errPasscodeRejected) }

func (as *authService) Authenticate(ctx context.Context, passcode string) (IssuedToken, error) {
	passcode = strings.TrimSpace(passcode)
	if passcode == "" {
		return IssuedToken{}, apierr.BadRequest("초대 코드를 입력해 주세요.")
	}
	if len(as.passcodeHash) == 0 {
		return IssuedToken{}, apierr.Msg(http.StatusInternalServerError, apierr.CodeInternal, "서버 APP_PASSCODE가 설정되지 않았습니다.")
	}
	if err := bcrypt.CompareHashAndPassword(as.passcodeHash, []byte(passcode)); err != nil {
		return IssuedToken{}, apierr.New(http.StatusUnauthorized, apierr.CodeUnauthorized, errPasscodeRejected)
	}

	now := as.now()
	expiresAt := now.Add(as.tokenTTL)
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(as.jwtSecretKey)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign token: %w", err)
	}
	as.log.Info("auth.success", "expires_at", expiresAt)
	return IssuedToken{Token: signed, ExpiresAt: expiresAt}, nil
}

func (as *authService) ValidateToken(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", apierr.Reason(apierr.CodeAuthTokenMissing)
	}
	parsed, err := jwt.ParseWithClaims(token, &JWTClaims{}, func(t *jwt.Token) (interface{}, error) {
		return as.jwtSecretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(as.now),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return "", apierr.Reason(apierr.CodeAuthTokenExpired)
	}
	if err != nil || !parsed.Valid {
		return "", apierr.Reason(apierr.CodeAuthTokenInvalid)
	}
	return token, nil
}

func (as *authService) AssertOwnership(s *assessment.Session, token string) error {
	if s == nil || s.Token != token {
		return apierr.Reason(apierr.CodeSessionTokenMismatch)
	}
	return nil
}

func (as *authService) TokenTTL() time.Duration { return as.tokenTTL }

// OwnerDigest is the form a session token takes once it is stored outside
// process memory.
func OwnerDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// OwnsDigest reports whether token is the one digest was made from. An empty
// digest or token never matches.
func OwnsDigest(digest, token string) bool {
	if digest == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(digest), []byte(OwnerDigest(token))) == 1
}
