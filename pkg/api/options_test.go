package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptionsClientDefault(t *testing.T) {
	opts := OptionsClientDefault()

	// client processes never run background routines
	assert.Equal(t, int64(0), int64(opts.SweepFrequency))
	assert.Equal(t, int64(0), int64(opts.ReconcileFrequency))
	assert.Equal(t, defRetention, opts.Retention)
	assert.Equal(t, defMaxJobRuntime, opts.MaxJobRuntime)
}

func TestOptionsServerDefault(t *testing.T) {
	opts := OptionsServerDefault()

	assert.True(t, opts.SweepFrequency > 0)
	assert.True(t, opts.ReconcileFrequency > 0)
	assert.True(t, opts.DispatchGrace > 0)
	assert.True(t, opts.MaxDispatchAttempts > 0)
	assert.True(t, opts.OrphanAge > 0)
	assert.Equal(t, defRetention, opts.Retention)
}
