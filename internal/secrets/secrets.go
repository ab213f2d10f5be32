// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

// Package secrets resolves API keys from the environment, the system
// keyring, and the config file, in that order.
package secrets

// DefaultService is the keyring service name under which Attune stores
// its secrets.
const DefaultService = "attune"

// Store provides secret storage scoped to a single keyring service.
// Implementations may use OS keyrings, encrypted files, or other
// backends; the service is fixed at construction so callers deal only
// in key names.
type Store interface {
	// Store saves a secret value under the given key.
	Store(key, value string) error

	// Retrieve fetches the secret value for the given key. A missing
	// key yields an error satisfying attuneerr.IsNotFound.
	Retrieve(key string) (string, error)

	// Delete removes the secret for the given key. A missing key
	// yields an error satisfying attuneerr.IsNotFound.
	Delete(key string) error

	// List returns the names of all keys held by the store.
	List() ([]string, error)
}
