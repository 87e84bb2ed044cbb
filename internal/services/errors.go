package services

import "errors"

// ErrPersistenceDisabled is returned by read operations when the service was
// built without a database.
var ErrPersistenceDisabled = errors.New("session persistence is disabled")
