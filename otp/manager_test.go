package otp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCreateSessionIssuesFourDigitCode(t *testing.T) {
	m := NewManager()
	session, err := m.CreateSession(MethodEmail, "user@example.com")
	require.NoError(t, err)
	require.Len(t, session.Code, CodeLength)
	require.Regexp(t, `^\d{4}$`, session.Code)
	require.NotEmpty(t, session.RequestID)
	require.WithinDuration(t, time.Now().Add(TTL), session.ExpiresAt, time.Second)
}

func TestVerifyCorrectCode(t *testing.T) {
	m := NewManager()
	session, err := m.CreateSession(MethodEmail, "user@example.com")
	require.NoError(t, err)

	outcome := m.Verify(session.RequestID, session.Code)
	require.Equal(t, OutcomeVerified, outcome)
	require.Equal(t, "Code verified.", outcome.Message())
}

func TestVerifyWrongCode(t *testing.T) {
	m := NewManager()
	session, err := m.CreateSession(MethodEmail, "user@example.com")
	require.NoError(t, err)

	wrong := "0000"
	if session.Code == wrong {
		wrong = "0001"
	}
	outcome := m.Verify(session.RequestID, wrong)
	require.Equal(t, OutcomeWrongCode, outcome)
	require.Equal(t, "Invalid verification code.", outcome.Message())

	// The right code still works after a miss.
	require.Equal(t, OutcomeVerified, m.Verify(session.RequestID, session.Code))
}

func TestVerifyUnknownRequest(t *testing.T) {
	m := NewManager()
	outcome := m.Verify("does-not-exist", "1234")
	require.Equal(t, OutcomeNotFound, outcome)
	require.Equal(t, "Code expired or not found.", outcome.Message())
}

func TestVerifyExpiredCode(t *testing.T) {
	m := NewManager()
	session, err := m.CreateSession(MethodMobile, "09171234567")
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(TTL + time.Second) }

	outcome := m.Verify(session.RequestID, session.Code)
	// The lazy purge removes the session before lookup.
	require.Equal(t, OutcomeNotFound, outcome)
}

func TestVerifyBurnsSessionAfterMaxAttempts(t *testing.T) {
	m := NewManager()
	session, err := m.CreateSession(MethodEmail, "user@example.com")
	require.NoError(t, err)

	wrong := "0000"
	if session.Code == wrong {
		wrong = "0001"
	}
	for i := 0; i < MaxAttempts-1; i++ {
		require.Equal(t, OutcomeWrongCode, m.Verify(session.RequestID, wrong))
	}
	outcome := m.Verify(session.RequestID, wrong)
	require.Equal(t, OutcomeTooManyAttempts, outcome)
	require.Equal(t, "Too many failed attempts. Request a new code.", outcome.Message())

	// Burned session is gone entirely, even for the correct code.
	require.Equal(t, OutcomeNotFound, m.Verify(session.RequestID, session.Code))
}

func TestNewSessionReplacesOldOneForSameContact(t *testing.T) {
	m := NewManager()
	first, err := m.CreateSession(MethodEmail, "user@example.com")
	require.NoError(t, err)
	second, err := m.CreateSession(MethodEmail, "user@example.com")
	require.NoError(t, err)

	require.Equal(t, OutcomeNotFound, m.Verify(first.RequestID, first.Code))
	require.Equal(t, OutcomeVerified, m.Verify(second.RequestID, second.Code))
}

func TestConsumeVerifiedRequiresVerification(t *testing.T) {
	m := NewManager()
	session, err := m.CreateSession(MethodEmail, "user@example.com")
	require.NoError(t, err)

	_, err = m.ConsumeVerified(session.RequestID)
	require.Error(t, err)

	require.Equal(t, OutcomeVerified, m.Verify(session.RequestID, session.Code))
	consumed, err := m.ConsumeVerified(session.RequestID)
	require.NoError(t, err)
	require.Equal(t, "user@example.com", consumed.Contact)

	// One reset per code.
	_, err = m.ConsumeVerified(session.RequestID)
	require.Error(t, err)
}
