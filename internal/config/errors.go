package config

import "errors"

var (
	ErrMissingValue = errors.New("missing required configuration")
	ErrInvalidValue = errors.New("invalid configuration value")
)
