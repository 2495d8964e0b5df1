// Package otp issues and checks the short-lived numeric codes used for
// password recovery. Sessions live in memory keyed by an opaque request ID;
// codes expire after a fixed TTL and a capped number of wrong guesses burns
// the session.
package otp

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// TTL is how long an issued code stays valid.
	TTL = 5 * time.Minute

	// MaxAttempts is the number of wrong guesses allowed before the session
	// is burned.
	MaxAttempts = 5

	// CodeLength is the number of digits in an issued code.
	CodeLength = 4
)

// Session is one outstanding recovery code.
type Session struct {
	RequestID string
	Contact   string
	Method    string
	Code      string
	ExpiresAt time.Time
	Attempts  int
	Verified  bool
}

// VerifyOutcome distinguishes the verification results the caller needs to
// react to differently.
type VerifyOutcome int

const (
	OutcomeVerified VerifyOutcome = iota
	OutcomeNotFound
	OutcomeExpired
	OutcomeTooManyAttempts
	OutcomeWrongCode
)

// Message returns the user-facing text for an outcome.
func (o VerifyOutcome) Message() string {
	switch o {
	case OutcomeVerified:
		return "Code verified."
	case OutcomeNotFound:
		return "Code expired or not found."
	case OutcomeExpired:
		return "Code expired. Request a new code."
	case OutcomeTooManyAttempts:
		return "Too many failed attempts. Request a new code."
	default:
		return "Invalid verification code."
	}
}

// Manager holds every outstanding session. All methods are safe for
// concurrent use.
type Manager struct {
	mutex    sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// generateCode draws a fixed-length numeric code from crypto/rand.
func generateCode() (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < CodeLength; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n), nil
}

// CreateSession issues a new code for the contact. Any previous session for
// the same contact and method is replaced so only the newest code works.
func (m *Manager) CreateSession(method, contact string) (*Session, error) {
	code, err := generateCode()
	if err != nil {
		return nil, err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.purgeExpiredLocked()

	for id, session := range m.sessions {
		if session.Contact == contact && session.Method == method {
			delete(m.sessions, id)
		}
	}

	session := &Session{
		RequestID: uuid.NewString(),
		Contact:   contact,
		Method:    method,
		Code:      code,
		ExpiresAt: m.now().Add(TTL),
	}
	m.sessions[session.RequestID] = session
	slog.Info("Recovery code issued", "requestId", session.RequestID, "method", method)

	copied := *session
	return &copied, nil
}

// Verify checks a guess against the session. Expired and burned sessions are
// removed; a correct guess marks the session verified so the password reset
// can consume it.
func (m *Manager) Verify(requestID, code string) VerifyOutcome {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.purgeExpiredLocked()

	session, ok := m.sessions[requestID]
	if !ok {
		return OutcomeNotFound
	}
	if m.now().After(session.ExpiresAt) {
		delete(m.sessions, requestID)
		return OutcomeExpired
	}
	if session.Attempts >= MaxAttempts {
		delete(m.sessions, requestID)
		return OutcomeTooManyAttempts
	}
	if session.Code != code {
		session.Attempts++
		if session.Attempts >= MaxAttempts {
			delete(m.sessions, requestID)
			return OutcomeTooManyAttempts
		}
		return OutcomeWrongCode
	}

	session.Verified = true
	return OutcomeVerified
}

// ConsumeVerified removes a verified session and returns it, or an error
// when the session is missing, expired, or never passed verification. One
// successful reset per code.
func (m *Manager) ConsumeVerified(requestID string) (*Session, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.purgeExpiredLocked()

	session, ok := m.sessions[requestID]
	if !ok {
		return nil, fmt.Errorf("no session for request %s", requestID)
	}
	if m.now().After(session.ExpiresAt) {
		delete(m.sessions, requestID)
		return nil, fmt.Errorf("session for request %s has expired", requestID)
	}
	if !session.Verified {
		return nil, fmt.Errorf("session for request %s is not verified", requestID)
	}

	delete(m.sessions, requestID)
	copied := *session
	return &copied, nil
}

// ConsumeVerifiedByContact removes and returns the verified session for a
// contact when the caller does not know the request ID.
func (m *Manager) ConsumeVerifiedByContact(contact string) (*Session, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.purgeExpiredLocked()

	for id, session := range m.sessions {
		if session.Contact == contact && session.Verified {
			delete(m.sessions, id)
			copied := *session
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("no verified session for contact")
}

// purgeExpiredLocked drops every session past its deadline. Callers hold the
// mutex.
func (m *Manager) purgeExpiredLocked() {
	now := m.now()
	for id, session := range m.sessions {
		if now.After(session.ExpiresAt) {
			delete(m.sessions, id)
		}
	}
}
