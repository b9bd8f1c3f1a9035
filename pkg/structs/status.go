package structs

import (
	"strings"
)

type Status string

const (
	// transient states
	PENDING Status = "PENDING"
	RUNNING Status = "RUNNING"

	// end states
	SUCCEEDED Status = "SUCCEEDED"
	FAILED    Status = "FAILED"
	EXPIRED   Status = "EXPIRED"
)

// IsFinalStatus reports whether a job in the given status will never
// transition again (other than being deleted by the sweeper).
func IsFinalStatus(status Status) bool {
	switch status {
	case SUCCEEDED, FAILED, EXPIRED:
		return true
	default:
		return false
	}
}

func ToStatus(s string) Status {
	switch strings.ToUpper(s) {
	case "PENDING":
		return PENDING
	case "RUNNING":
		return RUNNING
	case "SUCCEEDED":
		return SUCCEEDED
	case "FAILED":
		return FAILED
	case "EXPIRED":
		return EXPIRED
	default:
		return ""
	}
}
