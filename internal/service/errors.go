package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrNotFound           = errors.New("not found")

	ErrNoRefreshCredential = fmt.Errorf("%w: no refresh credential", ErrUnauthenticated)
	ErrInvalidRefresh      = fmt.Errorf("%w: invalid refresh", ErrUnauthenticated)
	ErrRefreshExpired      = fmt.Errorf("%w: refresh expired", ErrUnauthenticated)
	ErrUserNotFound        = fmt.Errorf("%w: user not found", ErrUnauthenticated)
	ErrInvalidAccessToken  = fmt.Errorf("%w: invalid or expired token", ErrUnauthenticated)
)
