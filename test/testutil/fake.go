package testutil

import (
	"fmt"

	"github.com/google/uuid"
)

// RandomJobName returns a PBS-safe job name that is unique per call.
func RandomJobName() string {
	return fmt.Sprintf("test-%s", uuid.NewString()[:8])
}

// RandomJobID returns a scheduler style id, e.g. "4401234.pbs01", or "4401234[].pbs01" when array is set.
func RandomJobID(array bool) string {
	number := fmt.Sprintf("44%05d", uuid.New().ID()%100000)
	if array {
		number += "[]"
	}
	return number + ".pbs01"
}
