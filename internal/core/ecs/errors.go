package ecs

import "errors"

var (
	// ErrDuplicateName is returned when a property or behavior name is
	// defined twice in the same registry.
	ErrDuplicateName = errors.New("ecs: duplicate definition name")

	// ErrUnregistered marks use of a definition that does not belong to the
	// entity's registry. Always raised as a panic at the call site.
	ErrUnregistered = errors.New("ecs: unregistered definition")
)
