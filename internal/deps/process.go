package deps

import (
	"context"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/conneroisu/isle/internal/channel"
	"github.com/conneroisu/isle/internal/errors"
)

// killGrace is how long Close waits for a worker to exit on its own after
// its stdin is closed.
const killGrace = 2 * time.Second

// ProcessConfig describes an analysis worker child process.
type ProcessConfig struct {
	Path   string
	Args   []string
	Env    []string
	Dir    string
	Stderr io.Writer
}

// Process is a child analysis worker speaking JSON lines on stdin/stdout.
// Cancelling the context it was started with kills it.
type Process struct {
	Conn

	cmd  *exec.Cmd
	done chan struct{}

	waitErr   error
	closeOnce sync.Once
	closeErr  error
}

// StartProcess launches the worker.
func StartProcess(ctx context.Context, cfg ProcessConfig) (*Process, error) {
	// Each side owns its pipe ends, so Wait never closes a pipe that still
	// holds unread output.
	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, errors.NewAnalysisError("SPAWN_FAILED", "cannot create pipe", err)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		return nil, errors.NewAnalysisError("SPAWN_FAILED", "cannot create pipe", err)
	}

	cmd := exec.CommandContext(ctx, cfg.Path, cfg.Args...)
	cmd.Env = append(os.Environ(), cfg.Env...)
	cmd.Dir = cfg.Dir
	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	cmd.Stderr = cfg.Stderr

	if err := cmd.Start(); err != nil {
		for _, f := range []*os.File{stdinR, stdinW, stdoutR, stdoutW} {
			f.Close()
		}
		return nil, errors.NewAnalysisError("SPAWN_FAILED", "cannot start analysis worker", err).
			WithContext("path", cfg.Path)
	}
	stdinR.Close()
	stdoutW.Close()

	p := &Process{
		Conn: channel.NewStream[Message](stdoutR, stdinW),
		cmd:  cmd,
		done: make(chan struct{}),
	}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

// PID returns the worker's process id.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Done is closed once the worker has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// ExitErr returns the worker's exit status once Done is closed.
func (p *Process) ExitErr() error {
	<-p.done
	return p.waitErr
}

// Close ends the worker: stdin is closed, and a worker that has not exited
// after a short grace period is killed. Close always waits for the exit.
func (p *Process) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.Conn.Close()

		select {
		case <-p.done:
		case <-time.After(killGrace):
			_ = p.cmd.Process.Kill()
			<-p.done
		}
	})
	return p.closeErr
}
