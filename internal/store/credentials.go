package store

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mova-app/widget-tasks/internal/domain"
)

// Persisted credential keys. The main application and the background
// task agree on these; absence (not empty string) means unset.
const (
	keyServerURL = "mova_api_url"
	keyUsername  = "mova_username"
	keyPassword  = "mova_password"
)

// CredentialStore persists the last-known server URL and Basic auth pair
// in the shared cross-process KV. The main application writes on login
// and logout; the background task only reads.
type CredentialStore struct {
	kv     KV
	logger *slog.Logger
}

// NewCredentialStore creates a CredentialStore on top of the shared KV.
func NewCredentialStore(kv KV, logger *slog.Logger) *CredentialStore {
	return &CredentialStore{kv: kv, logger: logger}
}

// Get returns the stored credentials. It never returns an error: the
// background task has no user to surface storage failures to, so any
// read failure degrades to all-empty credentials and the submission is
// queued instead of delivered. Partial reads degrade the same way.
func (s *CredentialStore) Get(ctx context.Context) domain.Credentials {
	serverURL, ok := s.read(ctx, keyServerURL)
	if !ok {
		return domain.Credentials{}
	}
	username, ok := s.read(ctx, keyUsername)
	if !ok {
		return domain.Credentials{}
	}
	password, ok := s.read(ctx, keyPassword)
	if !ok {
		return domain.Credentials{}
	}

	return domain.Credentials{
		ServerURL: serverURL,
		Username:  username,
		Password:  password,
	}
}

// Set stores all three fields wholesale. Storage failures propagate to
// the caller (the main application, which can show an error): a half
// written credential set must not look like a successful login.
func (s *CredentialStore) Set(ctx context.Context, creds domain.Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}

	if err := s.kv.Set(ctx, keyServerURL, []byte(creds.ServerURL)); err != nil {
		return err
	}
	if err := s.kv.Set(ctx, keyUsername, []byte(creds.Username)); err != nil {
		return err
	}
	return s.kv.Set(ctx, keyPassword, []byte(creds.Password))
}

// Clear removes all three fields wholesale. Storage failures propagate.
func (s *CredentialStore) Clear(ctx context.Context) error {
	if err := s.kv.Remove(ctx, keyServerURL); err != nil {
		return err
	}
	if err := s.kv.Remove(ctx, keyUsername); err != nil {
		return err
	}
	return s.kv.Remove(ctx, keyPassword)
}

// read returns the value for key, treating both absence and storage
// failure as "not usable". Failures are logged for diagnostics only.
func (s *CredentialStore) read(ctx context.Context, key string) (string, bool) {
	value, err := s.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			s.logger.Warn("credential read failed, treating as absent",
				"key", key,
				"error", err)
		}
		return "", false
	}
	if len(value) == 0 {
		return "", false
	}
	return string(value), true
}
