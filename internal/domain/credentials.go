package domain

import (
	"errors"
	"strings"
)

// Common validation errors for Credentials
var (
	ErrInvalidServerURL = errors.New("server URL must be a valid http(s) URL")
	ErrEmptyUsername    = errors.New("username cannot be empty")
	ErrEmptyPassword    = errors.New("password cannot be empty")
)

// Credentials holds the last-known remote server address and the Basic
// auth pair the background task uses to reach it. The main application
// writes them wholesale on login and clears them wholesale on logout;
// the background task only ever reads them.
type Credentials struct {
	ServerURL string `json:"server_url"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

// NewCredentials creates a validated credential set for storage.
// Returns an error if any field is missing or the URL is malformed,
// since a partial credential set is indistinguishable from no login.
func NewCredentials(serverURL, username, password string) (Credentials, error) {
	creds := Credentials{
		ServerURL: strings.TrimRight(strings.TrimSpace(serverURL), "/"),
		Username:  username,
		Password:  password,
	}

	if err := creds.Validate(); err != nil {
		return Credentials{}, err
	}

	return creds, nil
}

// Validate checks that all three fields are present and usable.
func (c Credentials) Validate() error {
	if !strings.HasPrefix(c.ServerURL, "http://") && !strings.HasPrefix(c.ServerURL, "https://") {
		return ErrInvalidServerURL
	}
	if c.Username == "" {
		return ErrEmptyUsername
	}
	if c.Password == "" {
		return ErrEmptyPassword
	}
	return nil
}

// Complete reports whether all three fields are present. Partial
// credentials are treated exactly like absent ones: the task queues the
// submission instead of attempting delivery with a broken auth header.
func (c Credentials) Complete() bool {
	return c.ServerURL != "" && c.Username != "" && c.Password != ""
}
