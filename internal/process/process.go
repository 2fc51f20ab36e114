package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"
)

// LogParser parses a subprocess output line into a log level and message.
// Used to map FFmpeg's "[level] message" output onto structured logging.
type LogParser func(line string) (level, msg string)

// StateHandler is notified on every state transition of a managed process.
type StateHandler func(info Info)

type exitReason int

const (
	exitReasonProcessExit exitReason = iota
	exitReasonShutdown
	exitReasonRestart
)

// Process manages the lifecycle of a single subprocess: it streams output
// into the logger, answers restart requests with a replacement command, and
// escalates SIGINT to SIGKILL on shutdown.
type Process struct {
	id              string
	logger          *slog.Logger
	outputLogger    *slog.Logger // logger for subprocess output (nil = use logger)
	logParser       LogParser
	stateHandler    StateHandler
	gracefulTimeout time.Duration
	killTimeout     time.Duration

	mu      sync.RWMutex
	command string
	info    Info

	cmd         *exec.Cmd
	restartChan chan string
	ctx         context.Context
	cancel      context.CancelFunc
}

// New creates a managed process for the given shell-style command string.
func New(id, command string, logger *slog.Logger) *Process {
	ctx, cancel := context.WithCancel(context.Background())
	return &Process{
		id:              id,
		command:         command,
		logger:          logger,
		info:            Info{ID: id, State: StateIdle},
		restartChan:     make(chan string, 1),
		gracefulTimeout: 5 * time.Second,
		killTimeout:     5 * time.Second,
		ctx:             ctx,
		cancel:          cancel,
	}
}

// SetLogParser routes subprocess output through a dedicated logger and
// level parser, e.g. module="ffmpeg" with the FFmpeg level prefix parser.
func (p *Process) SetLogParser(logger *slog.Logger, parser LogParser) {
	p.outputLogger = logger
	p.logParser = parser
}

// SetStateHandler registers a callback for state transitions.
func (p *Process) SetStateHandler(handler StateHandler) {
	p.stateHandler = handler
}

// Command returns the current command string.
func (p *Process) Command() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.command
}

// Info returns a snapshot of the process state.
func (p *Process) Info() Info {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.info
}

// RequestRestart asks the running process to restart with a new command.
// Non-blocking: a second request while one is pending is dropped.
func (p *Process) RequestRestart(newCommand string) {
	select {
	case p.restartChan <- newCommand:
		p.logger.Info("Restart requested")
	default:
		p.logger.Warn("Restart already pending, ignoring")
	}
}

// Shutdown triggers a graceful shutdown.
func (p *Process) Shutdown() {
	p.cancel()
}

// Run starts the subprocess and blocks until it exits or a shutdown signal
// arrives. Returns the subprocess exit code.
func (p *Process) Run() int {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	code, _ := p.runOnce(sigChan)
	return code
}

// RunWithRestart runs the subprocess and loops on restart requests. Returns
// on shutdown or when the subprocess exits on its own.
func (p *Process) RunWithRestart() int {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	for {
		exitCode, reason := p.runOnce(sigChan)

		switch reason {
		case exitReasonShutdown:
			p.logger.Info("Shutdown complete", "exit_code", exitCode)
			return exitCode
		case exitReasonRestart:
			p.logger.Info("Restarting process")
			p.bumpRestartCount()
			continue
		default:
			// Unexpected exit is handed to the caller, systemd decides
			// whether the unit restarts.
			p.logger.Info("Process exited unexpectedly", "exit_code", exitCode)
			return exitCode
		}
	}
}

type runningProcess struct {
	processDone <-chan error
	outputDone  chan struct{} // receives twice, once per output stream
}

func (p *Process) runOnce(sigChan <-chan os.Signal) (int, exitReason) {
	p.mu.RLock()
	command := p.command
	p.mu.RUnlock()

	p.setState(StateStarting, nil)
	rp, err := p.start(command)
	if err != nil {
		p.setState(StateError, err)
		return 1, exitReasonProcessExit
	}
	p.setState(StateRunning, nil)
	defer p.waitOutputDone(rp.outputDone)

	select {
	case <-p.ctx.Done():
		p.logger.Info("Context cancelled, shutting down process")
		return p.stop(rp.processDone), exitReasonShutdown

	case sig := <-sigChan:
		p.logger.Info("Received shutdown signal", "signal", sig.String())
		return p.stop(rp.processDone), exitReasonShutdown

	case newCmd := <-p.restartChan:
		p.logger.Info("Received restart request")
		code := p.stop(rp.processDone)
		p.mu.Lock()
		p.command = newCmd
		p.mu.Unlock()
		return code, exitReasonRestart

	case processErr := <-rp.processDone:
		exitCode := exitCodeFromError(processErr)
		if processErr != nil && exitCode == 1 {
			p.logger.Error("Process exited with error", "error", processErr)
		}
		p.logger.Info("Process exited", "exit_code", exitCode)
		if processErr != nil {
			p.setState(StateError, processErr)
		} else {
			p.setState(StateIdle, nil)
		}
		return exitCode, exitReasonProcessExit
	}
}

// start parses the command, launches the subprocess in its own process
// group, and wires output streaming.
func (p *Process) start(command string) (*runningProcess, error) {
	args, err := ParseCommand(command)
	if err != nil {
		p.logger.Error("Failed to parse command", "error", err)
		return nil, err
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	p.cmd = exec.Command(args[0], args[1:]...)
	p.cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := p.cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := p.cmd.Start(); err != nil {
		p.logger.Error("Failed to start process", "error", err, "command", command)
		return nil, err
	}

	p.mu.Lock()
	p.info.PID = p.cmd.Process.Pid
	p.info.StartedAt = time.Now()
	p.mu.Unlock()

	p.logger.Info("Process started", "id", p.id, "pid", p.cmd.Process.Pid, "command", command)

	outputDone := make(chan struct{}, 2)
	go func() {
		p.streamOutput(stdout, "stdout")
		outputDone <- struct{}{}
	}()
	go func() {
		p.streamOutput(stderr, "stderr")
		outputDone <- struct{}{}
	}()

	processDone := make(chan error, 1)
	go func() {
		processDone <- p.cmd.Wait()
	}()

	return &runningProcess{processDone: processDone, outputDone: outputDone}, nil
}

// stop sends SIGINT so FFmpeg can finalize its output, then waits with an
// escalation to SIGKILL.
func (p *Process) stop(processDone <-chan error) int {
	p.setState(StateStopping, nil)
	if p.cmd != nil && p.cmd.Process != nil {
		p.logger.Info("Sending SIGINT to process", "pid", p.cmd.Process.Pid)
		if err := p.cmd.Process.Signal(syscall.SIGINT); err != nil {
			p.logger.Warn("Failed to send SIGINT", "error", err)
		}
	}
	code := p.waitForExit(processDone)
	p.setState(StateIdle, nil)
	return code
}

func (p *Process) waitForExit(processDone <-chan error) int {
	select {
	case err := <-processDone:
		return exitCodeFromError(err)
	case <-time.After(p.gracefulTimeout):
		p.logger.Warn("Graceful shutdown timeout, forcing kill", "timeout", p.gracefulTimeout)
		if p.cmd.Process != nil {
			if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				p.logger.Error("Failed to kill process", "error", err)
			}
		}
		select {
		case <-processDone:
		case <-time.After(p.killTimeout):
			p.logger.Error("Process did not exit after kill signal")
		}
		return 137
	}
}

func (p *Process) waitOutputDone(outputDone <-chan struct{}) {
	<-outputDone
	<-outputDone
}

func (p *Process) setState(state State, err error) {
	p.mu.Lock()
	p.info.State = state
	p.info.LastError = err
	info := p.info
	p.mu.Unlock()

	if p.stateHandler != nil {
		p.stateHandler(info)
	}
}

func (p *Process) bumpRestartCount() {
	p.mu.Lock()
	p.info.RestartCount++
	p.mu.Unlock()
}

// streamOutput forwards subprocess output into the logger, classified by
// the configured parser.
func (p *Process) streamOutput(reader io.Reader, source string) {
	logger := p.outputLogger
	if logger == nil {
		logger = p.logger
	}

	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := scanner.Text()

		level, msg := "info", line
		if p.logParser != nil {
			level, msg = p.logParser(line)
		}

		switch level {
		case "fatal", "error", "panic":
			logger.Error(msg)
		case "warning":
			logger.Warn(msg)
		case "debug", "trace", "verbose":
			logger.Debug(msg)
		default:
			logger.Info(msg)
		}
	}

	if err := scanner.Err(); err != nil {
		p.logger.Warn("Error reading output", "source", source, "error", err)
	}
}

func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

// ParseCommand splits a shell-style command string into arguments, honoring
// single and double quotes and backslash escapes.
func ParseCommand(command string) ([]string, error) {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := rune(0)

	runes := []rune(strings.TrimSpace(command))
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"' || r == '\'':
			switch {
			case !inQuote:
				inQuote = true
				quoteChar = r
			case r == quoteChar:
				inQuote = false
				quoteChar = 0
			default:
				current.WriteRune(r)
			}
		case r == ' ' && !inQuote:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		case r == '\\' && i+1 < len(runes):
			i++
			current.WriteRune(runes[i])
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		args = append(args, current.String())
	}

	if inQuote {
		return nil, fmt.Errorf("unclosed quote in command")
	}
	return args, nil
}
