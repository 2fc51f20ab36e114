package events

// Event type constants for kelindar/event.
const (
	TypeStreamStateChanged uint32 = iota + 1
	TypeCameraDiscovered
	TypeConfigReloaded
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// StreamStateChangedEvent is published on every FFmpeg process state
// transition. Drives SSE status updates and the restart metrics.
type StreamStateChangedEvent struct {
	State        string `json:"state" example:"running" doc:"Process state: idle, starting, running, stopping, error"`
	PID          int    `json:"pid,omitempty" example:"4321" doc:"FFmpeg process ID"`
	RestartCount int    `json:"restart_count" example:"2" doc:"Restarts since startup"`
	Error        string `json:"error,omitempty" doc:"Last error, if any"`
	Timestamp    string `json:"timestamp" example:"2026-08-23T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamStateChangedEvent.
func (e StreamStateChangedEvent) Type() uint32 { return TypeStreamStateChanged }

// CameraDiscoveredEvent is published for each capture device found during
// a probe sweep.
type CameraDiscoveredEvent struct {
	Device      string `json:"device" example:"/dev/video0" doc:"V4L2 device path"`
	InputFormat string `json:"input_format" example:"h264" doc:"Preferred capture format"`
	VideoSize   string `json:"video_size" example:"1920x1080" doc:"Preferred frame size"`
	Timestamp   string `json:"timestamp" example:"2026-08-23T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CameraDiscoveredEvent.
func (e CameraDiscoveredEvent) Type() uint32 { return TypeCameraDiscovered }

// ConfigReloadedEvent is published after a config file change produced a
// new FFmpeg command.
type ConfigReloadedEvent struct {
	Command    string `json:"command" doc:"Recomposed FFmpeg command"`
	Deployment string `json:"deployment" example:"manifest" doc:"Deployment kind for the new command"`
	Timestamp  string `json:"timestamp" example:"2026-08-23T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ConfigReloadedEvent.
func (e ConfigReloadedEvent) Type() uint32 { return TypeConfigReloaded }
