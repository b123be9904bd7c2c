// Package sysinfo looks up a process's name from the OS process table for
// the resolver engine's fire-and-forget audit writes. It is a single pure
// function kept out of the resolution core, per the spec's framing of
// process-name lookup as an external collaborator.
package sysinfo

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrInvalidPID is returned for pid 0, which never names a real process.
var ErrInvalidPID = errors.New("sysinfo: pid 0 is invalid")

// ProcessName returns the name of the process identified by pid, reading
// /proc/<pid>/comm first and falling back to the first NUL-delimited
// segment of /proc/<pid>/cmdline when comm is absent or empty.
func ProcessName(pid uint32) (string, error) {
	if pid == 0 {
		return "", ErrInvalidPID
	}

	if name, ok := readComm(pid); ok {
		return name, nil
	}
	if name, ok := readCmdline(pid); ok {
		return name, nil
	}
	return "", fmt.Errorf("sysinfo: no process name found for pid %d", pid)
}

func readComm(pid uint32) (string, bool) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid))
	if err != nil {
		return "", false
	}
	name := strings.TrimSpace(string(data))
	if name == "" {
		return "", false
	}
	return name, true
}

func readCmdline(pid uint32) (string, bool) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
	if err != nil {
		return "", false
	}
	segment := splitNUL(data)
	if segment == "" {
		return "", false
	}
	return segment, true
}

// splitNUL takes the first NUL-delimited segment of raw /proc/<pid>/cmdline
// bytes. Exercised directly in tests against synthetic byte slices without
// touching the filesystem.
func splitNUL(data []byte) string {
	parts := bytes.SplitN(data, []byte{0}, 2)
	if len(parts) == 0 {
		return ""
	}
	return strings.TrimSpace(string(parts[0]))
}
