// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package secrets

import (
	"errors"

	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
	"github.com/zalando/go-keyring"
)

// Service is the keyring service name under which Aegis stores provider keys.
const Service = "aegis"

// Store reads and writes secrets by service and key.
type Store interface {
	Set(service, key, value string) error
	// Get returns a CodeSecretNotFound error when the key is absent.
	Get(service, key string) (string, error)
	Delete(service, key string) error
}

// KeyringStore implements Store on the OS keyring (Keychain, Secret
// Service over D-Bus, or Windows Credential Manager).
type KeyringStore struct{}

func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func (KeyringStore) Set(service, key, value string) error {
	if err := checkName(service, key); err != nil {
		return err
	}
	if err := keyring.Set(service, key, value); err != nil {
		return aegiserr.Wrapf(err, aegiserr.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}
	return nil
}

func (KeyringStore) Get(service, key string) (string, error) {
	if err := checkName(service, key); err != nil {
		return "", err
	}
	val, err := keyring.Get(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", aegiserr.Errorf(aegiserr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	if err != nil {
		return "", aegiserr.Wrapf(err, aegiserr.CodeSecretStoreFailure, "reading secret %s/%s", service, key)
	}
	return val, nil
}

func (KeyringStore) Delete(service, key string) error {
	if err := checkName(service, key); err != nil {
		return err
	}
	err := keyring.Delete(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return aegiserr.Errorf(aegiserr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	if err != nil {
		return aegiserr.Wrapf(err, aegiserr.CodeSecretDeleteFailure, "deleting secret %s/%s", service, key)
	}
	return nil
}

func checkName(service, key string) error {
	if service == "" || key == "" {
		return aegiserr.New(aegiserr.CodeSecretInvalidInput, "secret service and key must not be empty")
	}
	return nil
}

// ProviderKeyName is the keyring key holding the API key of a provider.
func ProviderKeyName(provider string) string {
	return provider + "-api-key"
}
