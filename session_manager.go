package auth

import (
	"context"
	"time"
)

// AuthTokens is the access/refresh pair returned by login and refresh.
type AuthTokens struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// SessionManager orchestrates the credential and token lifecycle flows
// against the Users repository. It holds no mutable state of its own beyond
// configuration; the store is the single source of truth, and concurrent
// flows for the same user are last-writer-wins at the store layer.
type SessionManager struct {
	repo     RepositoryManager
	cfg      Config
	tokens   *TokenService
	mailer   Mailer
	clock    Clock
	logger   Logger
	activity ActivitySink
}

// NewSessionManager returns a SessionManager with default collaborators:
// a TokenService built from cfg, a log-only mailer, and the system clock.
func NewSessionManager(repo RepositoryManager, cfg Config) *SessionManager {
	return &SessionManager{
		repo:     repo,
		cfg:      cfg,
		tokens:   NewTokenService(cfg),
		mailer:   logMailer{logger: defLogger{}},
		clock:    systemClock{},
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
}

func (s *SessionManager) WithLogger(logger Logger) *SessionManager {
	if logger != nil {
		s.logger = logger
		s.tokens.WithLogger(logger)
	}
	return s
}

// WithMailer configures the outbound mail dispatcher.
func (s *SessionManager) WithMailer(mailer Mailer) *SessionManager {
	if mailer != nil {
		s.mailer = mailer
	}
	return s
}

// WithClock overrides the time source for expiry decisions. The token
// service shares the same clock.
func (s *SessionManager) WithClock(clock Clock) *SessionManager {
	s.clock = normalizeClock(clock)
	s.tokens.WithClock(s.clock)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *SessionManager) WithActivitySink(sink ActivitySink) *SessionManager {
	s.activity = normalizeActivitySink(sink)
	return s
}

// WithTokenService swaps the token service, e.g. to share one instance with
// middleware.
func (s *SessionManager) WithTokenService(tokens *TokenService) *SessionManager {
	if tokens != nil {
		s.tokens = tokens
	}
	return s
}

// TokenService returns the TokenService instance used by this manager.
func (s *SessionManager) TokenService() *TokenService {
	return s.tokens
}

// SessionFromToken validates an access token and returns the session view
// the routing layer attaches to the request context.
func (s *SessionManager) SessionFromToken(raw string) (Session, error) {
	claims, err := s.tokens.ValidateOfType(raw, TokenTypeAccess)
	if err != nil {
		return nil, err
	}

	session, err := sessionFromAuthClaims(claims)
	if err != nil {
		s.logger.Error("SessionFromToken failed to create session from claims: %v", err)
		return nil, err
	}

	return session, nil
}

func (s *SessionManager) tempTokenTTL() time.Duration {
	if ttl := s.cfg.GetTempTokenTTL(); ttl > 0 {
		return ttl
	}
	return 20 * time.Minute
}

// dispatchMail sends best-effort: a failed delivery is logged and never fails
// the owning flow, so registration and resend succeed even if the message
// never arrives.
func (s *SessionManager) dispatchMail(ctx context.Context, mail Mail) {
	if err := s.mailer.Send(ctx, mail); err != nil {
		s.logger.Warn("mail dispatch to %s failed: %v", mail.To, err)
	}
}

func (s *SessionManager) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	event := ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		UserID:    userID,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.clock.Now()
	}

	if err := normalizeActivitySink(s.activity).Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}

func userActor(id string) ActorRef {
	return ActorRef{ID: id, Type: "user"}
}
