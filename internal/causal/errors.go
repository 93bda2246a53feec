package causal

import (
	"github.com/pkg/errors"
)

// Errors returned by Validate and NewEngine. Callers compare with errors.Cause.
var (
	ErrEmptyKey        = errors.New("key cannot be empty")
	ErrUnknownSender   = errors.New("sender is not a cluster member")
	ErrSelfMessage     = errors.New("message was sent by this node")
	ErrClockDomain     = errors.New("clock does not cover exactly the cluster membership")
	ErrNegativeCounter = errors.New("clock counter is negative")
	ErrSenderCounter   = errors.New("sender counter must be at least 1")
	ErrInvalidMembers  = errors.New("invalid cluster membership")
	ErrMissingSelf     = errors.New("node id is not part of the membership")
)

// CheckKey rejects keys the boundary must not pass to the engine.
func CheckKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return nil
}
