// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

package secrets

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/zalando/go-keyring"

	attuneerr "github.com/attune-dev/attune/pkg/errors"
)

// indexEntry is the keyring entry holding the JSON list of stored key
// names. go-keyring cannot enumerate keys, so the store maintains its
// own index alongside the secrets.
const indexEntry = "::keys-index"

// KeyringStore implements Store over the OS keyring: Keychain on macOS,
// secret-service (D-Bus) on Linux, Credential Manager on Windows. All
// entries live under the service name fixed at construction.
type KeyringStore struct {
	service string
}

// NewKeyringStore returns a KeyringStore bound to the given service
// name. An empty name selects DefaultService.
func NewKeyringStore(service string) *KeyringStore {
	if service == "" {
		service = DefaultService
	}
	return &KeyringStore{service: service}
}

func (s *KeyringStore) Store(key, value string) error {
	if key == "" {
		return attuneerr.New(attuneerr.CodeSecretsInvalidInput, "secrets: key must not be empty")
	}

	if err := keyring.Set(s.service, key, value); err != nil {
		return attuneerr.Wrapf(err, attuneerr.CodeSecretsBackendFailure, "storing secret %s/%s", s.service, key)
	}

	return s.indexAdd(key)
}

func (s *KeyringStore) Retrieve(key string) (string, error) {
	if key == "" {
		return "", attuneerr.New(attuneerr.CodeSecretsInvalidInput, "secrets: key must not be empty")
	}

	val, err := keyring.Get(s.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", attuneerr.Errorf(attuneerr.CodeSecretsKeyNotFound, "secret %s/%s not found", s.service, key)
		}
		return "", attuneerr.Wrapf(err, attuneerr.CodeSecretsBackendFailure, "retrieving secret %s/%s", s.service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(key string) error {
	if key == "" {
		return attuneerr.New(attuneerr.CodeSecretsInvalidInput, "secrets: key must not be empty")
	}

	if err := keyring.Delete(s.service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return attuneerr.Errorf(attuneerr.CodeSecretsKeyNotFound, "secret %s/%s not found", s.service, key)
		}
		return attuneerr.Wrapf(err, attuneerr.CodeSecretsBackendFailure, "deleting secret %s/%s", s.service, key)
	}

	return s.indexRemove(key)
}

func (s *KeyringStore) List() ([]string, error) {
	return s.index()
}

// index reads the stored key names. A missing index means no keys have
// been stored yet.
func (s *KeyringStore) index() ([]string, error) {
	raw, err := keyring.Get(s.service, s.service+indexEntry)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, attuneerr.Wrapf(err, attuneerr.CodeSecretsBackendFailure, "loading key index for service %s", s.service)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, attuneerr.Wrapf(err, attuneerr.CodeSecretsBackendFailure, "decoding key index for service %s", s.service)
	}
	return keys, nil
}

// writeIndex persists the key name list, removing the index entry
// entirely when it would be empty.
func (s *KeyringStore) writeIndex(keys []string) error {
	entry := s.service + indexEntry

	if len(keys) == 0 {
		if err := keyring.Delete(s.service, entry); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			slog.Debug("failed to clean up empty key index", "service", s.service, "error", err)
		}
		return nil
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return attuneerr.Wrapf(err, attuneerr.CodeSecretsBackendFailure, "encoding key index for service %s", s.service)
	}
	if err := keyring.Set(s.service, entry, string(data)); err != nil {
		return attuneerr.Wrapf(err, attuneerr.CodeSecretsBackendFailure, "saving key index for service %s", s.service)
	}
	return nil
}

func (s *KeyringStore) indexAdd(key string) error {
	keys, err := s.index()
	if err != nil {
		return err
	}

	for _, k := range keys {
		if k == key {
			return nil
		}
	}
	return s.writeIndex(append(keys, key))
}

func (s *KeyringStore) indexRemove(key string) error {
	keys, err := s.index()
	if err != nil {
		return err
	}

	kept := keys[:0]
	for _, k := range keys {
		if k != key {
			kept = append(kept, k)
		}
	}
	return s.writeIndex(kept)
}
