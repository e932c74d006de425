package store

import (
	"context"

	"github.com/ChamsBouzaiene/localchat/internal/conversation"
)

// disabledStore answers every call with an UnavailableError. It stands in
// for a backend that failed to initialize so the session keeps running.
type disabledStore struct {
	err *UnavailableError
}

// Disabled returns a Store whose calls all fail with ErrUnavailable.
func Disabled(backend string, cause error) Store {
	return &disabledStore{err: &UnavailableError{Backend: backend, Cause: cause}}
}

func (d *disabledStore) Insert(_ context.Context, _ conversation.Role, _ string, _ Metadata) (string, error) {
	return "", d.err
}

func (d *disabledStore) ListAll(context.Context) ([]Record, error) {
	return nil, d.err
}

func (d *disabledStore) Backend() string {
	return d.err.Backend
}

func (d *disabledStore) Close() error {
	return nil
}
