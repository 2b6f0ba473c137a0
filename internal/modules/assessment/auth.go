package assessment

import (
	"context"
	"time"

	"github.com/yungbote/mindtrace-backend/internal/platform/ctxutil"
	"github.com/yungbote/mindtrace-backend/internal/services"
)

type AuthenticateInput struct {
	ClientIP string
	Passcode string
}

type AuthenticateOutput struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Authenticate trades the shared passcode for a bearer token. Only wrong
// passcodes count toward the per-IP cooldown.
func (u Usecases) Authenticate(ctx context.Context, in AuthenticateInput) (AuthenticateOutput, error) {
	if err := u.deps.Limiter.AllowAuthAttempt(in.ClientIP); err != nil {
		return AuthenticateOutput{}, err
	}
	tok, err := u.deps.Auth.Authenticate(ctx, in.Passcode)
	if err != nil {
		if services.IsPasscodeRejected(err) {
			u.deps.Limiter.RecordAuthFailure(in.ClientIP)
			u.deps.Log.Warn("auth.fail", "request_id", ctxutil.RequestID(ctx), "client_ip", in.ClientIP)
		}
		return AuthenticateOutput{}, err
	}
	u.deps.Limiter.ClearAuthFailures(in.ClientIP)
	return AuthenticateOutput{Token: tok.Token, ExpiresAt: tok.ExpiresAt}, nil
}

// authorize validates the bearer token before any input is inspected.
func (u Usecases) authorize(ctx context.Context, token string) (string, error) {
	tok, err := u.deps.Auth.ValidateToken(ctx, token)
	if err != nil {
		u.deps.Log.Full("auth.token.reject", "request_id", ctxutil.RequestID(ctx), "token", token, "error", err)
		return "", err
	}
	return tok, nil
}
