package brokerauth

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// DefaultSessionTTL is the session lifetime used when no TTL is configured.
const DefaultSessionTTL = 7 * 24 * time.Hour

// IssueResult is the outcome of a successful token exchange.
type IssueResult struct {
	User   *User
	Cookie string
}

// SessionIssuer exchanges a verified identity token for a server-side
// session cookie, provisioning the user just-in-time and applying the
// allowlist policy along the way.
type SessionIssuer struct {
	provider  IdentityProvider
	store     IdentityStore
	allowlist *Allowlist
	notifier  PendingNotifier
	ttl       time.Duration
	logger    Logger
}

// SessionIssuerOption customizes issuer construction.
type SessionIssuerOption func(*SessionIssuer)

// WithSessionTTL overrides the session cookie lifetime.
func WithSessionTTL(ttl time.Duration) SessionIssuerOption {
	return func(s *SessionIssuer) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithIssuerLogger overrides the issuer's logger.
func WithIssuerLogger(l Logger) SessionIssuerOption {
	return func(s *SessionIssuer) {
		s.logger = resolveLogger(l)
	}
}

// WithPendingNotifier sets the sink for users left PENDING after the
// allowlist pass.
func WithPendingNotifier(n PendingNotifier) SessionIssuerOption {
	return func(s *SessionIssuer) {
		s.notifier = n
	}
}

// NewSessionIssuer creates a SessionIssuer.
func NewSessionIssuer(provider IdentityProvider, store IdentityStore, allowlist *Allowlist, opts ...SessionIssuerOption) *SessionIssuer {
	issuer := &SessionIssuer{
		provider:  provider,
		store:     store,
		allowlist: allowlist,
		ttl:       DefaultSessionTTL,
		logger:    defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(issuer)
		}
	}

	return issuer
}

// Issue runs the full exchange: verify the identity token, normalize the
// phone claim, find-or-create the user, sync identity fields, apply the
// allowlist, notify if the user remains pending, and mint the session
// cookie. Every provider or store failure past input validation collapses
// into a generic unauthorized error so no internal detail leaks.
func (s *SessionIssuer) Issue(ctx context.Context, idToken string) (*IssueResult, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, ErrMissingToken
	}

	token, err := s.provider.VerifyIDToken(ctx, idToken)
	if err != nil {
		s.logger.Error("session_login_invalid_token", "error", err)
		return nil, errors.Wrap(err, errors.CategoryAuth, "Invalid credentials").
			WithTextCode("INVALID_CREDENTIALS").
			WithCode(errors.CodeUnauthorized)
	}

	if strings.TrimSpace(token.PhoneNumber) == "" {
		s.logger.Error("session_login_missing_phone", "uid", token.UID)
		return nil, ErrPhoneRequired
	}

	phoneE164 := NormalizePhoneE164(token.PhoneNumber)

	user, err := s.provisionUser(ctx, token.UID, phoneE164)
	if err != nil {
		s.logger.Error("session_login_provision_failed", "uid", token.UID, "error", err)
		return nil, errors.Wrap(err, errors.CategoryAuth, "Invalid credentials").
			WithTextCode("INVALID_CREDENTIALS").
			WithCode(errors.CodeUnauthorized)
	}

	if patch := s.allowlist.Decide(phoneE164, user); !patch.IsEmpty() {
		if user, err = s.store.ApplyPatch(ctx, user.ID.String(), patch); err != nil {
			s.logger.Error("session_login_allowlist_failed", "uid", token.UID, "error", err)
			return nil, errors.Wrap(err, errors.CategoryAuth, "Invalid credentials").
				WithTextCode("INVALID_CREDENTIALS").
				WithCode(errors.CodeUnauthorized)
		}
		s.logger.Info("user_allowlist_updated", "uid", token.UID, "phone_e164", phoneE164)
	}

	if user.Status == StatusPending {
		s.notifyPending(user)
	}

	cookie, err := s.provider.SessionCookie(ctx, idToken, s.ttl)
	if err != nil {
		s.logger.Error("session_login_mint_failed", "uid", token.UID, "error", err)
		return nil, errors.Wrap(err, errors.CategoryAuth, "Invalid credentials").
			WithTextCode("INVALID_CREDENTIALS").
			WithCode(errors.CodeUnauthorized)
	}

	s.logger.Info("session_login_success", "uid", token.UID, "status", user.Status)

	return &IssueResult{User: user, Cookie: cookie}, nil
}

// provisionUser finds the user by uid or phone, creating the row on first
// login. Two concurrent first logins for the same phone can race the
// create; the unique constraints make the loser fail loudly, and we treat
// that as "someone else provisioned it" and re-read exactly once.
func (s *SessionIssuer) provisionUser(ctx context.Context, uid, phoneE164 string) (*User, error) {
	user, err := s.store.FindByUIDOrPhone(ctx, uid, phoneE164)
	if err != nil {
		if !repository.IsRecordNotFound(err) {
			return nil, err
		}

		user, err = s.store.CreateFromToken(ctx, uid, phoneE164)
		if err != nil {
			if !IsUniqueViolation(err) {
				return nil, err
			}
			if user, err = s.store.FindByUIDOrPhone(ctx, uid, phoneE164); err != nil {
				return nil, err
			}
		} else {
			s.logger.Info("user_created", "uid", uid, "phone_e164", phoneE164, "status", user.Status)
			return user, nil
		}
	}

	if user.UID != uid || user.PhoneE164 != phoneE164 {
		if user, err = s.store.SyncIdentity(ctx, user, uid, phoneE164); err != nil {
			return nil, err
		}
		s.logger.Info("user_synced", "uid", uid, "phone_e164", phoneE164)
	}

	return user, nil
}

// notifyPending fires the pending-user notification without awaiting it.
// The outcome is deliberately discarded; a lost webhook never blocks login.
func (s *SessionIssuer) notifyPending(user *User) {
	if s.notifier == nil {
		return
	}

	snapshot := *user
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.notifier.NotifyPendingUser(ctx, &snapshot)
	}()
}
