package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenID returns a new message id.
func GenID() string {
	return "m_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// GenThreadID returns a new thread id.
func GenThreadID() string {
	return "t_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
