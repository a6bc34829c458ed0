package utils

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateRunID generates a run ID with a timestamp prefix
func GenerateRunID() string {
	timestamp := time.Now().Format("20060102-150405")
	return fmt.Sprintf("run-%s-%s", timestamp, uuid.NewString()[:8])
}

// GenerateID generates a random unique ID
func GenerateID() string {
	return uuid.NewString()
}

// EvaluationDirPrefix is the temp directory prefix of one evaluation.
func EvaluationDirPrefix(evalID int64) string {
	return fmt.Sprintf("q2k_eval_%d_", evalID)
}
