package handlers

import "errors"

var (
	errEmptyBatch       = errors.New("batch requires at least one request")
	errMissingSessionID = errors.New("missing session id")
)
