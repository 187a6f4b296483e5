package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
)

// Session owns cached key material for the duration of a single operation.
// It replaces what would otherwise be ambient process-wide state: callers
// create a Session, pass it into the engine, and tear it down with ClearCache
// when the operation finishes.
//
// A Session serves a single passphrase. Derivation results are cached per
// salt, so repeated Encrypt calls within one backup reuse the same key and
// Decrypt calls against payloads carrying the same salt skip re-derivation.
//
// Concurrency: Encrypt/Decrypt against already-derived material only read the
// cache and are safe to run in parallel; DeriveKey, DeriveKeyWithSalt (on a
// cache miss) and ClearCache mutate it and are serialized by the mutex.
type Session struct {
	mu          sync.RWMutex
	keys        map[string]KeyMaterial
	currentSalt []byte
}

// NewSession creates an empty Session.
func NewSession() *Session {
	return &Session{keys: make(map[string]KeyMaterial)}
}

// DeriveKey derives key material for the passphrase. On first use a random
// salt is generated and cached; subsequent calls return the cached material
// without re-running PBKDF2.
func (s *Session) DeriveKey(passphrase string) (KeyMaterial, error) {
	if passphrase == "" {
		return KeyMaterial{}, fmt.Errorf("passphrase is required")
	}

	s.mu.RLock()
	if s.currentSalt != nil {
		km, ok := s.keys[saltKey(s.currentSalt)]
		if ok {
			s.mu.RUnlock()
			return km, nil
		}
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentSalt != nil {
		if km, ok := s.keys[saltKey(s.currentSalt)]; ok {
			return km, nil
		}
	}

	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return KeyMaterial{}, fmt.Errorf("failed to generate salt: %w", err)
	}

	km := deriveKey(passphrase, salt)
	s.currentSalt = salt
	s.keys[saltKey(salt)] = km
	return km, nil
}

// DeriveKeyWithSalt derives key material for the passphrase using an explicit
// salt, typically one recovered from an encrypted payload. Results are cached
// per salt.
func (s *Session) DeriveKeyWithSalt(passphrase string, salt []byte) (KeyMaterial, error) {
	if passphrase == "" {
		return KeyMaterial{}, fmt.Errorf("passphrase is required")
	}
	if len(salt) != SaltLength {
		return KeyMaterial{}, fmt.Errorf("invalid salt length: got %d bytes, want %d", len(salt), SaltLength)
	}

	key := saltKey(salt)

	s.mu.RLock()
	if km, ok := s.keys[key]; ok {
		s.mu.RUnlock()
		return km, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if km, ok := s.keys[key]; ok {
		return km, nil
	}

	km := deriveKey(passphrase, salt)
	s.keys[key] = km
	return km, nil
}

// ClearCache invalidates all cached key material, zeroing the key bytes.
// The next DeriveKey call generates a fresh salt and re-derives. Safe to
// call on an empty session.
func (s *Session) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, km := range s.keys {
		for i := range km.Key {
			km.Key[i] = 0
		}
		delete(s.keys, k)
	}
	s.currentSalt = nil
}

func saltKey(salt []byte) string {
	return base64.StdEncoding.EncodeToString(salt)
}
