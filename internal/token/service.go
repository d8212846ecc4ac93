package token

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	auth "github.com/eidcore/authsteps"
	"github.com/eidcore/authsteps/internal/crypto"
)

type service struct {
	logger    log.Logger
	repoMngr  auth.RepositoryManager
	cache     auth.RevocationCache
	lifetimes map[auth.SessionType]time.Duration
}

// Create issues a new refresh token. The lifetime is the session type's
// default unless overridden; long lived machine sessions also carry an
// absolute expiration date. At most one active token exists per device,
// session type, and user, so siblings are hard deleted on creation.
func (s *service) Create(ctx context.Context, traceID string, sessionType auth.SessionType, opts *auth.TokenOptions, headers auth.Headers) (*auth.RefreshToken, error) {
	if opts == nil {
		opts = &auth.TokenOptions{}
	}

	value, err := crypto.String(tokenValueLength)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate token value")
	}

	lifetime := s.lifetime(sessionType, opts)
	now := time.Now().UTC()

	token := &auth.RefreshToken{
		Value:            value,
		SessionType:      sessionType,
		MobileUID:        headers.MobileUID,
		UserIdentifier:   opts.UserIdentifier,
		EntityID:         opts.EntityID,
		ExpirationTime:   epochMs(now.Add(lifetime)),
		EntryPoint:       opts.EntryPoint,
		LastActivityDate: now,
	}

	if hasAbsoluteExpiry(sessionType) {
		date := now.Add(lifetime)
		token.ExpirationDate = &date
	}

	if err = s.repoMngr.RefreshToken().Create(ctx, token); err != nil {
		return nil, err
	}

	// Entity keyed machine tokens carry no user to scope a sibling
	// delete to.
	var siblings int64
	if token.UserIdentifier != "" {
		siblings, err = s.repoMngr.RefreshToken().DeleteSiblings(
			ctx,
			token.MobileUID,
			sessionType,
			token.UserIdentifier,
			token.Value,
		)
		if err != nil {
			return nil, err
		}
	}

	level.Debug(s.logger).Log(
		"source", "TokenService.Create",
		"message", "refresh token issued",
		"trace_id", traceID,
		"session_type", sessionType,
		"siblings_deleted", siblings,
	)

	return token, nil
}

// Refresh rotates a token's value in place. The write is scoped to the
// previous value still being current, so of two concurrent refreshes
// exactly one wins and the loser is reported unauthorized.
func (s *service) Refresh(ctx context.Context, value string, sessionType auth.SessionType, opts *auth.TokenOptions, headers auth.Headers) (*auth.RefreshToken, error) {
	if opts == nil {
		opts = &auth.TokenOptions{}
	}

	current, err := s.repoMngr.RefreshToken().ByValue(ctx, value, headers.MobileUID)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(auth.ErrInvalidToken{
			Reason: "refresh token not found",
		}, err.Error())
	}
	if err != nil {
		return nil, err
	}

	value, err = crypto.String(tokenValueLength)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate token value")
	}

	// Rotation keeps the stored device binding; only the value, activity
	// date, and optionally the lifetime and entry point move.
	rotated := *current
	rotated.Value = value
	rotated.LastActivityDate = time.Now().UTC()

	if opts.ProlongLifetime {
		rotated.ExpirationTime = epochMs(time.Now().UTC().Add(s.lifetime(sessionType, opts)))
	}

	if opts.EntryPoint != nil {
		if rotated.EntryPoint != nil {
			rotated.EntryPointHistory = append(rotated.EntryPointHistory, *rotated.EntryPoint)
		}
		rotated.EntryPoint = opts.EntryPoint
	}

	matched, err := s.repoMngr.RefreshToken().Rotate(ctx, value, &rotated)
	if err != nil {
		return nil, err
	}
	if matched == 0 {
		return nil, errors.Wrap(auth.ErrInvalidToken{
			Reason: "refresh token is no longer current",
		}, "zero records matched on rotation")
	}

	return &rotated, nil
}

// Validate is a read only existence and expiry check. An expired token
// may carry a verification code asking the client to re-authenticate.
func (s *service) Validate(ctx context.Context, value string, headers auth.Headers, opts *auth.ValidateOptions) (*auth.RefreshToken, error) {
	token, err := s.repoMngr.RefreshToken().ByValue(ctx, value, headers.MobileUID)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(auth.ErrInvalidToken{
			Reason: "refresh token not found",
		}, err.Error())
	}
	if err != nil {
		return nil, err
	}

	if token.IsExpired() {
		invalid := auth.ErrInvalidToken{Reason: "refresh token expired"}
		if opts != nil {
			invalid.Result = opts.VerificationCode
		}
		return nil, invalid
	}

	return token, nil
}

// Logout revokes a mobile session.
func (s *service) Logout(ctx context.Context, value string, headers auth.Headers) error {
	return s.revoke(ctx, value, headers.MobileUID, auth.SessionUser, auth.SessionEResident)
}

// LogoutPortal revokes a web cabinet session.
func (s *service) LogoutPortal(ctx context.Context, value string, headers auth.Headers) error {
	return s.revoke(ctx, value, headers.MobileUID, auth.SessionPortalUser)
}

// ServiceLogout revokes a service office entrance session.
func (s *service) ServiceLogout(ctx context.Context, value string, headers auth.Headers) error {
	return s.revoke(ctx, value, headers.MobileUID, auth.SessionServiceEntrance)
}

// revoke flags the target row deleted, hard deletes its siblings, and
// pushes the value onto the revocation cache in the background.
func (s *service) revoke(ctx context.Context, value, mobileUID string, sessionTypes ...auth.SessionType) error {
	token, err := s.repoMngr.RefreshToken().ByValue(ctx, value, mobileUID)
	if err == sql.ErrNoRows {
		return errors.Wrap(auth.ErrInvalidToken{
			Reason: "refresh token not found",
		}, err.Error())
	}
	if err != nil {
		return err
	}

	if !sessionTypeAllowed(token.SessionType, sessionTypes) {
		return auth.ErrInvalidToken{Reason: "token does not belong to this session type"}
	}

	matched, err := s.repoMngr.RefreshToken().MarkDeleted(ctx, value, mobileUID)
	if err != nil {
		return err
	}
	if matched == 0 {
		// A replayed or concurrently revoked value.
		return errors.Wrap(auth.ErrInvalidToken{
			Reason: "refresh token is no longer current",
		}, "zero records matched on deletion")
	}

	count, err := s.repoMngr.RefreshToken().DeleteSiblings(
		ctx,
		token.MobileUID,
		token.SessionType,
		token.UserIdentifier,
		value,
	)
	if err != nil {
		return err
	}

	level.Debug(s.logger).Log(
		"source", "TokenService.revoke",
		"message", "session revoked",
		"session_type", token.SessionType,
		"siblings_deleted", count,
	)

	go s.cacheRevocation(context.Background(), token)

	return nil
}

// CheckExpiration sweeps overdue mobile bound tokens in fixed size
// batches. The sweep is idempotent and a no-op when nothing is overdue.
func (s *service) CheckExpiration(ctx context.Context) (int64, error) {
	overdue, err := s.repoMngr.RefreshToken().CountOverdue(ctx)
	if err != nil {
		return 0, err
	}
	if overdue == 0 {
		return 0, nil
	}

	var total int64
	for total < overdue {
		marked, err := s.repoMngr.RefreshToken().ExpireBatch(ctx, expireBatchSize)
		if err != nil {
			return total, err
		}
		if marked == 0 {
			break
		}
		total += marked
	}

	level.Info(s.logger).Log(
		"source", "TokenService.CheckExpiration",
		"message", "overdue tokens expired",
		"count", total,
	)

	return total, nil
}

// RemoveByMobileUID deletes every token bound to a device.
func (s *service) RemoveByMobileUID(ctx context.Context, mobileUID string) (int64, error) {
	return s.removeAll(ctx, "TokenService.RemoveByMobileUID", func() ([]*auth.RefreshToken, error) {
		return s.repoMngr.RefreshToken().ByMobileUID(ctx, mobileUID)
	})
}

// RemoveByUserIdentifier deletes every token bound to a user.
func (s *service) RemoveByUserIdentifier(ctx context.Context, userIdentifier string) (int64, error) {
	return s.removeAll(ctx, "TokenService.RemoveByUserIdentifier", func() ([]*auth.RefreshToken, error) {
		return s.repoMngr.RefreshToken().ByUserIdentifier(ctx, userIdentifier)
	})
}

// RemoveByEntityID deletes every token bound to a partner entity.
func (s *service) RemoveByEntityID(ctx context.Context, entityID string) (int64, error) {
	return s.removeAll(ctx, "TokenService.RemoveByEntityID", func() ([]*auth.RefreshToken, error) {
		return s.repoMngr.RefreshToken().ByEntityID(ctx, entityID)
	})
}

// removeAll deletes the listed tokens and revokes each value in the
// cache with its own remaining lifetime.
func (s *service) removeAll(ctx context.Context, source string, list func() ([]*auth.RefreshToken, error)) (int64, error) {
	tokens, err := list()
	if err != nil {
		return 0, err
	}
	if len(tokens) == 0 {
		return 0, nil
	}

	ids := make([]string, len(tokens))
	for i, token := range tokens {
		ids[i] = token.ID
	}

	count, err := s.repoMngr.RefreshToken().Delete(ctx, ids)
	if err != nil {
		return 0, err
	}

	go func() {
		for _, token := range tokens {
			s.cacheRevocation(context.Background(), token)
		}
	}()

	level.Info(s.logger).Log(
		"source", source,
		"message", "refresh tokens removed",
		"count", count,
	)

	return count, nil
}

// cacheRevocation pushes a revoked value onto the cache until the
// token's natural expiry. Failures are logged, never surfaced.
func (s *service) cacheRevocation(ctx context.Context, token *auth.RefreshToken) {
	if s.cache == nil {
		return
	}

	ttl := token.RemainingLifetime()
	if ttl <= 0 {
		return
	}

	err := s.cache.Set(ctx, RevocationKey(token.Value), string(token.SessionType), ttl)
	if err != nil {
		level.Error(s.logger).Log(
			"source", "TokenService.cacheRevocation",
			"message", "fatal: failed to cache revoked token",
			"error", err,
		)
	}
}

func (s *service) lifetime(sessionType auth.SessionType, opts *auth.TokenOptions) time.Duration {
	if opts.CustomLifetime > 0 {
		return opts.CustomLifetime
	}
	if lifetime, ok := s.lifetimes[sessionType]; ok {
		return lifetime
	}
	return defaultUserLifetime
}

func hasAbsoluteExpiry(sessionType auth.SessionType) bool {
	return sessionType == auth.SessionPartner || sessionType == auth.SessionAcquirer
}

func sessionTypeAllowed(sessionType auth.SessionType, allowed []auth.SessionType) bool {
	for _, t := range allowed {
		if t == sessionType {
			return true
		}
	}
	return false
}

// RevocationKey is the cache key holding a revoked token value.
func RevocationKey(value string) string {
	return "revoked-token:" + value
}

func epochMs(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}
