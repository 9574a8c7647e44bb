// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vector

import (
	"fmt"
)

// Error type names carried in VectorError.Type.
const (
	TypeIllegalArgument      = "IllegalArgument"
	TypeOversizedAllocation  = "OversizedAllocation"
	TypeOutOfMemory          = "OutOfMemory"
	TypeUnsupportedOperation = "UnsupportedOperation"
	TypeIllegalState         = "IllegalState"
)

// Sentinels for use with errors.Is. ErrVector matches any *VectorError; the
// others match only errors of the same Type.
var (
	ErrVector               = &VectorError{}
	ErrIllegalArgument      = &VectorError{Type: TypeIllegalArgument}
	ErrOversizedAllocation  = &VectorError{Type: TypeOversizedAllocation}
	ErrOutOfMemory          = &VectorError{Type: TypeOutOfMemory}
	ErrUnsupportedOperation = &VectorError{Type: TypeUnsupportedOperation}
	ErrIllegalState         = &VectorError{Type: TypeIllegalState}
)

// VectorError is returned by vector and allocator operations.
type VectorError struct {
	Type    string
	Message string
}

func (e *VectorError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Is supports errors.Is. A target with an empty Type matches any
// *VectorError.
func (e *VectorError) Is(target error) bool {
	t, ok := target.(*VectorError)
	if !ok {
		return false
	}
	return t.Type == "" || t.Type == e.Type
}

func illegalArgument(format string, args ...any) error {
	return &VectorError{Type: TypeIllegalArgument, Message: fmt.Sprintf(format, args...)}
}

func oversizedAllocation(format string, args ...any) error {
	return &VectorError{Type: TypeOversizedAllocation, Message: fmt.Sprintf(format, args...)}
}

func outOfMemory(format string, args ...any) error {
	return &VectorError{Type: TypeOutOfMemory, Message: fmt.Sprintf(format, args...)}
}

func unsupportedOperation(format string, args ...any) error {
	return &VectorError{Type: TypeUnsupportedOperation, Message: fmt.Sprintf(format, args...)}
}

func illegalState(format string, args ...any) error {
	return &VectorError{Type: TypeIllegalState, Message: fmt.Sprintf(format, args...)}
}
