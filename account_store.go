package main

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/crypto/scrypt"
)

// Account is one directory entry reachable by a recovery contact.
type Account struct {
	Email        string
	Mobile       string
	PasswordHash string
}

// AccountStore is the user directory the password-reset flow updates.
type AccountStore interface {
	// FindByContact looks an account up by normalized email or mobile.
	FindByContact(contact string) (*Account, error)

	// SetPassword replaces the stored hash for the account owning the
	// contact.
	SetPassword(contact, passwordHash string) error
}

const (
	scryptN      = 16384
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltLen      = 16
)

// HashPassword derives a scrypt hash in the stored
// "scrypt:<salt-hex>:<key-hex>" format.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", fmt.Errorf("failed to derive password hash: %w", err)
	}
	return fmt.Sprintf("scrypt:%s:%s", hex.EncodeToString(salt), hex.EncodeToString(key)), nil
}

// CheckPassword verifies a password against a stored hash. Rows written
// before hashing was introduced hold the plain password and still verify by
// direct comparison.
func CheckPassword(password, stored string) bool {
	parts := strings.Split(stored, ":")
	if len(parts) != 3 || parts[0] != "scrypt" {
		// Legacy plaintext row.
		return subtle.ConstantTimeCompare([]byte(password), []byte(stored)) == 1
	}

	salt, err := hex.DecodeString(parts[1])
	if err != nil {
		return false
	}
	expected, err := hex.DecodeString(parts[2])
	if err != nil {
		return false
	}
	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(key, expected) == 1
}

var (
	hasUpper  = regexp.MustCompile(`[A-Z]`)
	hasLower  = regexp.MustCompile(`[a-z]`)
	hasDigit  = regexp.MustCompile(`\d`)
	hasSymbol = regexp.MustCompile(`[^A-Za-z0-9]`)
)

// ValidatePasswordStrength enforces the reset-password rule: at least eight
// characters with upper, lower, digit, and symbol.
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	if !hasUpper.MatchString(password) || !hasLower.MatchString(password) ||
		!hasDigit.MatchString(password) || !hasSymbol.MatchString(password) {
		return fmt.Errorf("password must contain upper and lower case letters, a digit, and a symbol")
	}
	return nil
}

// ------------------------------------------------------------------------------

type InMemoryAccountStore struct {
	accounts []*Account
	mutex    sync.Mutex
}

func NewInMemoryAccountStore() *InMemoryAccountStore {
	return &InMemoryAccountStore{}
}

// AddAccount registers an account. Intended for wiring and tests.
func (s *InMemoryAccountStore) AddAccount(account Account) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	copied := account
	s.accounts = append(s.accounts, &copied)
}

func (s *InMemoryAccountStore) findLocked(contact string) *Account {
	for _, account := range s.accounts {
		if account.Email == contact || account.Mobile == contact {
			return account
		}
	}
	return nil
}

func (s *InMemoryAccountStore) FindByContact(contact string) (*Account, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if account := s.findLocked(contact); account != nil {
		copied := *account
		return &copied, nil
	}
	return nil, fmt.Errorf("no account for contact")
}

func (s *InMemoryAccountStore) SetPassword(contact, passwordHash string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if account := s.findLocked(contact); account != nil {
		account.PasswordHash = passwordHash
		return nil
	}
	return fmt.Errorf("no account for contact")
}
