package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/minesim/minesim/pkg/errors"
)

func TestTaskRoundTrip(t *testing.T) {
	given := &Task{
		JobID:      "job-1",
		LogPath:    "jobs/job-1/input/log.csv",
		ConfigPath: "jobs/job-1/input/configuration.yaml",
	}

	data, err := given.Marshal()
	assert.Nil(t, err)

	result, err := UnmarshalTask(data)
	assert.Nil(t, err)
	assert.Equal(t, given, result)
}

func TestTaskMarshalRequiresJobID(t *testing.T) {
	_, err := (&Task{LogPath: "somewhere"}).Marshal()

	assert.ErrorIs(t, err, errors.ErrInvalidArg)
}

func TestUnmarshalTask(t *testing.T) {
	cases := []struct {
		Name   string
		Given  string
		Expect error
	}{
		{"Valid", `{"job_id":"job-1","log_path":"x"}`, nil},
		{"NotJson", `}{`, errors.ErrInvalidArg},
		{"MissingJobID", `{"log_path":"x"}`, errors.ErrInvalidArg},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			result, err := UnmarshalTask([]byte(c.Given))

			if c.Expect == nil {
				assert.Nil(t, err)
				assert.Equal(t, "job-1", result.JobID)
			} else {
				assert.ErrorIs(t, err, c.Expect)
			}
		})
	}
}
