package common

import (
	"github.com/google/uuid"
)

// NewOperationID generates a unique operation ID with the "op_" prefix
// Format: op_<uuid>
func NewOperationID() string {
	return "op_" + uuid.New().String()
}
