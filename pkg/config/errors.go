package config

import "errors"

// Sentinel errors returned by profile validation.
var (
	ErrUnknownAuthKind = errors.New("config: unknown auth kind")
	ErrUnknownFormat   = errors.New("config: unknown output format")
)
