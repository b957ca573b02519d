package fbas

import "errors"

var (
	ErrDanglingReference   = errors.New("reference to unknown node")
	ErrInvalidThreshold    = errors.New("invalid threshold")
	ErrUnknownNode         = errors.New("unknown node")
	ErrDuplicateMembership = errors.New("node belongs to multiple organizations")
)
