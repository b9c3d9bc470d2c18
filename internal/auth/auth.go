// Package auth guards the local RPC surface with a bearer token and a
// client network allowlist.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"focus-blocks/internal/settings"
)

// bcryptCost is the work factor used when hashing tokens.
// Tests lower it for speed.
var bcryptCost = bcrypt.DefaultCost

// Manager issues and validates the API token. Only the bcrypt hash is kept
// in settings; the plaintext lives in a 0600 file next to the database so
// local clients can read it.
type Manager struct {
	settings  *settings.Manager
	tokenFile string

	mu        sync.Mutex
	validated string
}

// NewManager creates an auth manager backed by the settings manager.
func NewManager(sm *settings.Manager, tokenFile string) *Manager {
	return &Manager{settings: sm, tokenFile: tokenFile}
}

// EnsureToken returns the current token, generating and persisting one when
// the token file is missing or no longer matches the stored hash.
func (m *Manager) EnsureToken(ctx context.Context) (string, error) {
	s, err := m.settings.Get(ctx)
	if err != nil {
		return "", err
	}
	if s.APITokenHash != "" {
		if token, err := ReadTokenFile(m.tokenFile); err == nil && token != "" {
			if bcrypt.CompareHashAndPassword([]byte(s.APITokenHash), []byte(token)) == nil {
				m.remember(token)
				return token, nil
			}
		}
	}
	return m.RegenerateToken(ctx)
}

// ValidateToken returns true if token matches the stored hash.
func (m *Manager) ValidateToken(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	m.mu.Lock()
	cached := m.validated
	m.mu.Unlock()
	if cached != "" && subtle.ConstantTimeCompare([]byte(token), []byte(cached)) == 1 {
		return true
	}
	s, err := m.settings.Get(ctx)
	if err != nil || s.APITokenHash == "" {
		return false
	}
	if bcrypt.CompareHashAndPassword([]byte(s.APITokenHash), []byte(token)) != nil {
		return false
	}
	m.remember(token)
	return true
}

// RegenerateToken creates a new random token, persists its hash and the
// token file, and returns it. The previous token stops validating.
func (m *Manager) RegenerateToken(ctx context.Context) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcryptCost)
	if err != nil {
		return "", err
	}
	s, err := m.settings.Get(ctx)
	if err != nil {
		return "", err
	}
	s.APITokenHash = string(hash)
	if err := m.settings.Save(ctx, s); err != nil {
		return "", err
	}
	if m.tokenFile != "" {
		if err := writeTokenFile(m.tokenFile, token); err != nil {
			return "", err
		}
	}
	m.remember(token)
	return token, nil
}

func (m *Manager) remember(token string) {
	m.mu.Lock()
	m.validated = token
	m.mu.Unlock()
}

// ReadTokenFile reads a token written by the daemon.
func ReadTokenFile(path string) (string, error) {
	if path == "" {
		return "", errors.New("token file path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func writeTokenFile(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(token+"\n"), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// generateToken returns a cryptographically random 32-byte hex string.
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
