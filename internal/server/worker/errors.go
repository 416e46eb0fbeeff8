package worker

import "errors"

var (
	// ErrNoResponse means neither the network nor any cache could answer.
	ErrNoResponse = errors.New("no response")
	// ErrInstallFailed wraps the first failure of an install.
	ErrInstallFailed  = errors.New("install failed")
	ErrInvalidState   = errors.New("invalid worker state")
	ErrUnknownMessage = errors.New("unknown control message")
)
