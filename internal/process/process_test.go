package process

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProcess(command string) *Process {
	p := New("test", command, testLogger())
	p.gracefulTimeout = 100 * time.Millisecond
	p.killTimeout = 100 * time.Millisecond
	return p
}

func runAsync(p *Process) <-chan int {
	done := make(chan int, 1)
	go func() { done <- p.Run() }()
	return done
}

func runWithRestartAsync(p *Process) <-chan int {
	done := make(chan int, 1)
	go func() { done <- p.RunWithRestart() }()
	return done
}

func waitForExit(t *testing.T, done <-chan int, timeout time.Duration) int {
	t.Helper()
	select {
	case exitCode := <-done:
		return exitCode
	case <-time.After(timeout):
		t.Fatal("timeout waiting for process to exit")
		return -1
	}
}

func TestGracefulShutdown(t *testing.T) {
	p := newTestProcess(`sh -c "trap 'exit 0' INT TERM; while :; do sleep 0.1; done"`)
	p.gracefulTimeout = 500 * time.Millisecond

	done := runAsync(p)
	time.Sleep(100 * time.Millisecond)
	p.Shutdown()

	if exitCode := waitForExit(t, done, 1*time.Second); exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}
}

func TestForceKillOnTimeout(t *testing.T) {
	// Ignores SIGINT, must be killed. 137 = 128 + SIGKILL.
	p := newTestProcess(`sh -c "trap '' INT; sleep 10"`)
	p.gracefulTimeout = 50 * time.Millisecond
	p.killTimeout = 50 * time.Millisecond

	done := runAsync(p)
	time.Sleep(50 * time.Millisecond)
	p.Shutdown()

	if exitCode := waitForExit(t, done, 500*time.Millisecond); exitCode != 137 {
		t.Errorf("expected exit code 137, got %d", exitCode)
	}
}

func TestProcessExitCode(t *testing.T) {
	p := newTestProcess("sh -c 'exit 42'")
	if exitCode := p.Run(); exitCode != 42 {
		t.Errorf("expected exit code 42, got %d", exitCode)
	}
}

func TestRunWithInvalidCommand(t *testing.T) {
	for _, command := range []string{`echo "unclosed`, "", "/nonexistent/command"} {
		p := newTestProcess(command)
		if exitCode := p.Run(); exitCode != 1 {
			t.Errorf("Run(%q) = %d, want 1", command, exitCode)
		}
	}
}

func TestRequestRestartSwapsCommand(t *testing.T) {
	p := newTestProcess("sleep 10")

	done := runWithRestartAsync(p)
	time.Sleep(100 * time.Millisecond)

	p.RequestRestart("sleep 10")
	time.Sleep(300 * time.Millisecond)

	if got := p.Command(); got != "sleep 10" {
		t.Errorf("Command() after restart = %q", got)
	}
	if got := p.Info().RestartCount; got != 1 {
		t.Errorf("RestartCount = %d, want 1", got)
	}

	p.Shutdown()
	waitForExit(t, done, 1*time.Second)
}

func TestRequestRestartAlreadyPending(t *testing.T) {
	p := newTestProcess("sleep 10")

	p.RequestRestart("first")
	p.RequestRestart("second") // dropped

	if got := <-p.restartChan; got != "first" {
		t.Errorf("pending restart command = %q, want first", got)
	}
}

func TestStateTransitions(t *testing.T) {
	p := newTestProcess("true")

	var mu sync.Mutex
	var states []State
	p.SetStateHandler(func(info Info) {
		mu.Lock()
		states = append(states, info.State)
		mu.Unlock()
	})

	if exitCode := p.Run(); exitCode != 0 {
		t.Fatalf("Run() = %d, want 0", exitCode)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(states) < 2 || states[0] != StateStarting || states[1] != StateRunning {
		t.Errorf("states = %v, want starting then running first", states)
	}
}

func TestShutdownBeforeStart(t *testing.T) {
	p := newTestProcess("sleep 10")
	p.Shutdown() // must not panic
}

func TestStreamOutputWithParser(t *testing.T) {
	p := newTestProcess(`sh -c "echo '[error] boom'; echo plain"`)
	p.SetLogParser(testLogger(), func(line string) (string, string) {
		return "info", line
	})
	if exitCode := p.Run(); exitCode != 0 {
		t.Errorf("Run() = %d, want 0", exitCode)
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		command string
		want    []string
	}{
		{"ffmpeg -i /dev/video0", []string{"ffmpeg", "-i", "/dev/video0"}},
		{`echo "two words"`, []string{"echo", "two words"}},
		{`echo 'single quoted'`, []string{"echo", "single quoted"}},
		{`echo hello\ world`, []string{"echo", "hello world"}},
		{"  spaced   out  ", []string{"spaced", "out"}},
	}

	for _, tt := range tests {
		args, err := ParseCommand(tt.command)
		if err != nil {
			t.Fatalf("ParseCommand(%q) unexpected error: %v", tt.command, err)
		}
		if len(args) != len(tt.want) {
			t.Fatalf("ParseCommand(%q) = %v, want %v", tt.command, args, tt.want)
		}
		for i := range args {
			if args[i] != tt.want[i] {
				t.Errorf("ParseCommand(%q)[%d] = %q, want %q", tt.command, i, args[i], tt.want[i])
			}
		}
	}

	if _, err := ParseCommand(`echo "unclosed`); err == nil {
		t.Error("ParseCommand must reject an unclosed quote")
	}
}
