package config

import (
	"errors"
)

var (
	// ErrInvalidConfig is returned by Validate and wraps the offending key.
	ErrInvalidConfig = errors.New("config: invalid value")
	// ErrLoadConfig wraps failures reading the YAML file or the TRIGML_ environment.
	ErrLoadConfig = errors.New("config: cannot load")
)
