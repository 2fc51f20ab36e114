package process

import "time"

// State represents the lifecycle state of a managed subprocess.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateError    State = "error"
)

// Info is a snapshot of a managed subprocess.
type Info struct {
	ID           string
	State        State
	PID          int
	StartedAt    time.Time
	RestartCount int
	LastError    error
}
