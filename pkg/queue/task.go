package queue

import (
	"encoding/json"
	"fmt"

	"github.com/minesim/minesim/pkg/errors"
)

// Task is the queue message for one discovery job. Broker-agnostic: it is
// what crosses the wire, serialized as JSON.
type Task struct {
	JobID      string `json:"job_id"`
	LogPath    string `json:"log_path"`
	ConfigPath string `json:"config_path,omitempty"`
}

func (t *Task) Marshal() ([]byte, error) {
	if t.JobID == "" {
		return nil, fmt.Errorf("%w task has no job id", errors.ErrInvalidArg)
	}
	return json.Marshal(t)
}

func UnmarshalTask(data []byte) (*Task, error) {
	t := &Task{}
	if err := json.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("%w bad task payload: %v", errors.ErrInvalidArg, err)
	}
	if t.JobID == "" {
		return nil, fmt.Errorf("%w task has no job id", errors.ErrInvalidArg)
	}
	return t, nil
}
