package checkpoint

import "errors"

var (
	// ErrPartialResume is returned when only one of the two resume records is given.
	ErrPartialResume = errors.New("resume requires both a discriminator and a generator checkpoint")
	// ErrRecordMismatch is returned when the two resume records describe different points of a run.
	ErrRecordMismatch = errors.New("checkpoint records disagree")
	// ErrParamCountMismatch is returned when saved parameters do not fit the rebuilt network.
	ErrParamCountMismatch = errors.New("parameter count mismatch")
	// ErrRoleRequired is returned when a record does not carry the network it is used for.
	ErrRoleRequired = errors.New("record does not contain the required network")
)
