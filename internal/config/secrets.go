package config

import (
	stderrors "errors"
	"strings"

	"github.com/zalando/go-keyring"

	"hubstage/pkg/errors"
	"hubstage/pkg/models"
)

const keyringService = "hubstage"

// KeyringUser is the keyring entry name for a warehouse login.
func KeyringUser(w models.Warehouse) string {
	host := w.Account
	if host == "" {
		host = w.Database
	}
	return strings.ToLower(w.Dialect) + "://" + w.Username + "@" + host
}

// ResolvePassword fills w.Password from the OS keyring when the config asks
// for it. A password already set (file or environment) wins.
func ResolvePassword(w *models.Warehouse) error {
	if w.Password != "" || !w.PasswordFromKeyring {
		return nil
	}

	secret, err := keyring.Get(keyringService, KeyringUser(*w))
	if err != nil {
		if stderrors.Is(err, keyring.ErrNotFound) {
			return errors.New(errors.ErrCodeCredentialsMissing, "warehouse password not found in keyring").
				WithContext("entry", KeyringUser(*w)).
				WithSuggestions(
					"Run 'hubstage init' to store the password",
					"Or set HUBSTAGE_WAREHOUSE_PASSWORD",
				)
		}
		return errors.Wrap(err, errors.ErrCodeCredentialsMissing, "failed to read password from keyring")
	}
	w.Password = secret
	return nil
}

// StorePassword saves the warehouse password in the OS keyring.
func StorePassword(w models.Warehouse, password string) error {
	if err := keyring.Set(keyringService, KeyringUser(w), password); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to store password in keyring")
	}
	return nil
}

// DeletePassword removes a stored password; a missing entry is ignored.
func DeletePassword(w models.Warehouse) error {
	err := keyring.Delete(keyringService, KeyringUser(w))
	if err != nil && !stderrors.Is(err, keyring.ErrNotFound) {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to delete password from keyring")
	}
	return nil
}
