package issuer

import (
	"context"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	auth "github.com/eidcore/authsteps"
	"github.com/eidcore/authsteps/internal/crypto"
)

// ProfileUpdater pushes freshly verified identity attributes to the
// profile record backing an identifier.
type ProfileUpdater interface {
	UpsertProfile(ctx context.Context, identifier string, user *auth.User, headers auth.Headers) error
}

type service struct {
	logger      log.Logger
	repoMngr    auth.RepositoryManager
	tokens      auth.TokenService
	events      auth.EventRepository
	notifier    auth.NotificationService
	profiles    ProfileUpdater
	secret      []byte
	salt        string
	issuer      string
	tokenExpiry time.Duration
}

// Issue resolves a stable identifier for the verified identity, clears
// prior session state for the device, issues a fresh refresh token, and
// signs an access token embedding it. Audit and notification side
// effects run concurrently and never block the returned token.
func (s *service) Issue(ctx context.Context, req auth.IssueRequest) (*auth.IssueResponse, error) {
	if req.User == nil {
		return nil, auth.ErrBadRequest("user is required for token issuance")
	}
	if req.Headers.MobileUID == "" && isMobileSession(req.SessionType) {
		return nil, auth.ErrBadRequest("device identifier is required")
	}

	identifier, err := s.resolveIdentifier(req)
	if err != nil {
		return nil, err
	}

	if req.Headers.MobileUID != "" {
		count, err := s.tokens.RemoveByMobileUID(ctx, req.Headers.MobileUID)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			level.Debug(s.logger).Log(
				"source", "IssuanceService.Issue",
				"message", "prior device sessions cleared",
				"count", count,
			)
		}
	}

	refreshToken, err := s.tokens.Create(ctx, req.TraceID, req.SessionType, &auth.TokenOptions{
		UserIdentifier: identifier,
		EntryPoint:     entryPoint(req.User),
	}, req.Headers)
	if err != nil {
		return nil, err
	}

	signed, err := s.sign(identifier, req.SessionType, refreshToken)
	if err != nil {
		return nil, err
	}

	s.fireSideEffects(identifier, req, refreshToken)

	return &auth.IssueResponse{
		Token:        signed,
		RefreshToken: refreshToken.Value,
		Identifier:   identifier,
	}, nil
}

// resolveIdentifier keeps an identifier carried by an already known
// user, otherwise derives one from the taxpayer number or document
// with a session type specific prefix.
func (s *service) resolveIdentifier(req auth.IssueRequest) (string, error) {
	if req.User.Identifier != "" {
		return req.User.Identifier, nil
	}

	naturalKey := req.User.ITN
	if naturalKey == "" {
		naturalKey = req.User.Document
	}
	if naturalKey == "" {
		return "", auth.ErrBadRequest("user has no identifying key")
	}

	return crypto.Identifier(identifierPrefix(req.SessionType), naturalKey, s.salt), nil
}

func (s *service) sign(identifier string, sessionType auth.SessionType, refreshToken *auth.RefreshToken) (string, error) {
	claims := auth.AccessClaims{
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(s.tokenExpiry).Unix(),
			IssuedAt:  time.Now().Unix(),
			Id:        refreshToken.ID,
			Issuer:    s.issuer,
		},
		Identifier:   identifier,
		SessionType:  sessionType,
		RefreshToken: refreshToken.Value,
		MobileUID:    refreshToken.MobileUID,
	}

	jwtSigned, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign JWT token")
	}

	return jwtSigned, nil
}

// fireSideEffects runs the audit and notification fan-out. All effects
// run concurrently and any rejection is logged, never escalated.
func (s *service) fireSideEffects(identifier string, req auth.IssueRequest, refreshToken *auth.RefreshToken) {
	ctx := context.Background()

	var wg sync.WaitGroup

	if s.events != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.events.Publish(ctx, &auth.Event{
				Name:       "session-issued",
				TraceID:    req.TraceID,
				Identifier: identifier,
				MobileUID:  req.Headers.MobileUID,
				Payload: map[string]string{
					"session_type": string(req.SessionType),
					"process_id":   req.ProcessID,
					"platform":     req.Headers.Platform,
				},
				OccurredAt: time.Now().UTC(),
			})
			if err != nil {
				s.logSideEffect("audit event publication", err)
			}
		}()
	}

	if s.profiles != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.profiles.UpsertProfile(ctx, identifier, req.User, req.Headers); err != nil {
				s.logSideEffect("profile upsert", err)
			}
		}()
	}

	if s.notifier != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !s.hasOtherSessions(ctx, identifier, refreshToken.Value) {
				return
			}
			if err := s.notifier.NewDeviceDetected(ctx, identifier, req.Headers); err != nil {
				s.logSideEffect("new device notification", err)
			}
		}()

		if req.Headers.PushToken != "" {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := s.notifier.BindPushToken(ctx, identifier, req.Headers.PushToken); err != nil {
					s.logSideEffect("push token binding", err)
				}
			}()
		}
	}

	wg.Wait()
}

// hasOtherSessions reports whether the user holds an active session on
// another device beside the freshly issued one.
func (s *service) hasOtherSessions(ctx context.Context, identifier, excludeValue string) bool {
	tokens, err := s.repoMngr.RefreshToken().ByUserIdentifier(ctx, identifier)
	if err != nil {
		s.logSideEffect("active session lookup", err)
		return false
	}

	for _, token := range tokens {
		if token.Value != excludeValue && !token.IsExpired() {
			return true
		}
	}
	return false
}

func (s *service) logSideEffect(name string, err error) {
	level.Error(s.logger).Log(
		"source", "IssuanceService.Issue",
		"message", "fatal: "+name+" failed",
		"error", err,
	)
}

// entryPoint computes the audit descriptor of how the session was
// established.
func entryPoint(user *auth.User) *auth.AuthEntryPoint {
	ep := auth.AuthEntryPoint{
		Document: user.DocumentType,
	}

	switch {
	case user.Bank != "":
		ep.Target = "bankid"
		ep.Bank = user.Bank
		ep.IsBankID = true
	case user.DocumentType != "":
		ep.Target = user.DocumentType
	default:
		ep.Target = "unknown"
	}

	return &ep
}

func identifierPrefix(sessionType auth.SessionType) string {
	switch sessionType {
	case auth.SessionPortalUser:
		return "puser"
	case auth.SessionEResident:
		return "eres"
	case auth.SessionPartner:
		return "partner"
	case auth.SessionAcquirer:
		return "acq"
	case auth.SessionServiceEntrance:
		return "serv"
	case auth.SessionTemporary:
		return "temp"
	default:
		return "user"
	}
}

func isMobileSession(sessionType auth.SessionType) bool {
	switch sessionType {
	case auth.SessionUser, auth.SessionEResident, auth.SessionTemporary:
		return true
	default:
		return false
	}
}
