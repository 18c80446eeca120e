// Package daemon tracks the backgrounded API server through a PID file.
package daemon

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// PIDFile records which process owns a background server instance. The zero
// value is unusable; construct with NewPIDFile.
type PIDFile struct {
	Path string
}

// NewPIDFile returns a PIDFile at path. Nothing is written until Write.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{Path: path}
}

// Write records the current process.
func (p *PIDFile) Write() error {
	return p.WritePID(os.Getpid())
}

// WritePID records pid, trailing newline included so the file reads cleanly
// in a shell.
func (p *PIDFile) WritePID(pid int) error {
	return os.WriteFile(p.Path, []byte(strconv.Itoa(pid)+"\n"), 0o644)
}

// Read returns the recorded PID.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file content: %w", err)
	}
	return pid, nil
}

// Remove deletes the file. Callers remove on clean shutdown; a stale file
// left by a crash is caught by IsRunning.
func (p *PIDFile) Remove() error {
	return os.Remove(p.Path)
}
