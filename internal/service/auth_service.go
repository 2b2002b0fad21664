// Package service holds the authentication business rules: registration,
// password and external-id login, token issuance and profile lookup.
package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/iliyamo/user-auth-service/internal/model"
	"github.com/iliyamo/user-auth-service/internal/queue"
	"github.com/iliyamo/user-auth-service/internal/repository"
	"github.com/iliyamo/user-auth-service/internal/utils"
)

const tracerName = "github.com/iliyamo/user-auth-service/internal/service"

// publishTimeout bounds how long a lifecycle event may delay a response.
const publishTimeout = 3 * time.Second

// AuthService is the single entry point for credential handling.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (model.FilteredUser, error)
	AuthenticateByPassword(ctx context.Context, email, password string) (*model.User, error)
	// AuthenticateByExternalID logs a user in by external handle alone.
	// No secret is checked: the caller must only invoke it for an
	// identity that a trusted upstream (e.g. a Telegram login widget
	// verifier) has already authenticated.
	AuthenticateByExternalID(ctx context.Context, externalID string) (*model.User, error)
	IssueToken(u *model.User) (string, error)
	GetProfile(ctx context.Context, userID string) (model.FilteredUser, error)
}

// EventPublisher receives user lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.UserEvent) error
}

// RegisterInput is the already-validated registration payload.
type RegisterInput struct {
	Email       string
	Password    string
	DisplayName *string
	ExternalID  *string
}

// Options configures NewAuthService. Secret and TTL are required; the rest
// default to no-op implementations.
type Options struct {
	Secret    string
	TTL       string
	Argon2    utils.Argon2Params
	Publisher EventPublisher
	Logger    *zap.Logger
	Tracer    trace.TracerProvider
}

type authService struct {
	store     repository.UserStore
	secret    string
	ttl       string
	argon2    utils.Argon2Params
	publisher EventPublisher
	log       *zap.Logger
	tracer    trace.Tracer

	dummyOnce sync.Once
	dummyHash string
}

var _ AuthService = (*authService)(nil)

// NewAuthService wires an AuthService over store. It holds no mutable state
// and is safe for concurrent use.
func NewAuthService(store repository.UserStore, opts Options) AuthService {
	s := &authService{
		store:     store,
		secret:    opts.Secret,
		ttl:       opts.TTL,
		argon2:    opts.Argon2,
		publisher: opts.Publisher,
		log:       opts.Logger,
	}
	if s.publisher == nil {
		s.publisher = queue.NopPublisher{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	tp := opts.Tracer
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	s.tracer = tp.Tracer(tracerName)
	return s
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (_ model.FilteredUser, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Register")
	defer func() { endSpan(span, err) }()

	if err := ctx.Err(); err != nil {
		return model.FilteredUser{}, internalError("register", err)
	}
	hash, err := utils.HashPassword(in.Password, s.argon2)
	if err != nil {
		return model.FilteredUser{}, internalError("hash password", err)
	}
	if err := ctx.Err(); err != nil {
		return model.FilteredUser{}, internalError("register", err)
	}

	u, err := s.store.Create(ctx, model.NewUser{
		Email:        in.Email,
		PasswordHash: hash,
		DisplayName:  in.DisplayName,
		ExternalID:   in.ExternalID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateIdentity) {
			return model.FilteredUser{}, ErrDuplicateIdentity
		}
		return model.FilteredUser{}, internalError("create user", err)
	}
	span.SetAttributes(attribute.String("user.id", u.ID))

	fu, err := u.Filter()
	if err != nil {
		return model.FilteredUser{}, internalError("filter user", err)
	}
	s.publish(ctx, queue.NewUserEvent(queue.EventUserRegistered, u.ID, queue.MethodPassword))
	return fu, nil
}

func (s *authService) AuthenticateByPassword(ctx context.Context, email, password string) (_ *model.User, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.AuthenticateByPassword")
	defer func() { endSpan(span, err) }()

	u, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Spend a verify anyway so response time does not reveal
			// whether the email exists.
			utils.VerifyPassword(s.dummy(), password)
			return nil, ErrInvalidCredentials
		}
		return nil, internalError("find by email", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, internalError("authenticate", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	span.SetAttributes(attribute.String("user.id", u.ID))
	s.publish(ctx, queue.NewUserEvent(queue.EventUserLoggedIn, u.ID, queue.MethodPassword))
	return u, nil
}

func (s *authService) AuthenticateByExternalID(ctx context.Context, externalID string) (_ *model.User, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.AuthenticateByExternalID")
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(externalID) == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := s.store.FindByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, internalError("find by external id", err)
	}

	span.SetAttributes(attribute.String("user.id", u.ID))
	s.publish(ctx, queue.NewUserEvent(queue.EventUserLoggedIn, u.ID, queue.MethodExternalID))
	return u, nil
}

func (s *authService) IssueToken(u *model.User) (string, error) {
	if u == nil || u.ID == "" {
		return "", internalError("issue token", errors.New("user has no id"))
	}
	tok, err := utils.IssueToken(u.ID, s.secret, s.ttl)
	if err != nil {
		return "", internalError("issue token", err)
	}
	return tok, nil
}

func (s *authService) GetProfile(ctx context.Context, userID string) (_ model.FilteredUser, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.GetProfile",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer func() { endSpan(span, err) }()

	u, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.FilteredUser{}, ErrNotFound
		}
		return model.FilteredUser{}, internalError("find by id", err)
	}
	fu, err := u.Filter()
	if err != nil {
		return model.FilteredUser{}, internalError("filter user", err)
	}
	return fu, nil
}

// publish delivers ev without letting a broker problem fail the request.
// The request context's cancellation is dropped so a client disconnect
// does not lose an event for an operation that already succeeded.
func (s *authService) publish(ctx context.Context, ev queue.UserEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.Warn("publish user event failed",
			zap.String("type", ev.Type), zap.String("user_id", ev.UserID), zap.Error(err))
	}
}

// dummy returns a valid hash used to equalize timing for unknown emails.
func (s *authService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := utils.HashPassword("dummy-password", s.argon2)
		if err != nil {
			s.log.Warn("dummy hash unavailable", zap.Error(err))
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

// endSpan marks only internal failures as span errors; credential and
// lookup misses are expected outcomes.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.SetAttributes(attribute.String("auth.outcome", outcome(err)))
		if errors.Is(err, ErrInternal) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "internal")
		}
	}
	span.End()
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrDuplicateIdentity):
		return "duplicate_identity"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
