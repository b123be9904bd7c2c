package sysinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcessName_RejectsPIDZero(t *testing.T) {
	_, err := ProcessName(0)
	assert.ErrorIs(t, err, ErrInvalidPID)
}

func TestProcessName_PID1(t *testing.T) {
	// pid 1 always exists on a Linux host; this exercises the real
	// /proc/<pid>/comm path without needing root or a fixture process.
	name, err := ProcessName(1)
	assert.NoError(t, err)
	assert.NotEmpty(t, name)
}

func TestSplitNUL(t *testing.T) {
	assert.Equal(t, "curl", splitNUL([]byte("curl\x00-s\x00https://example.com\x00")))
	assert.Equal(t, "", splitNUL([]byte{}))
	assert.Equal(t, "onlyarg", splitNUL([]byte("onlyarg")))
}
