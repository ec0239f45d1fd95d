package sandbox

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"syscall"
	"time"

	"github.com/conductorhq/conductor/errs"
)

// StreamOpts customizes one run_streaming invocation.
type StreamOpts struct {
	Cwd              string
	Env              map[string]string
	AbsoluteTimeout  time.Duration
	ProgressInterval time.Duration
	StuckTimeout     time.Duration // no output at all within this long
	StaleTimeout     time.Duration // no *new* output within this long, after some was seen
}

// StreamResult is what run_streaming produced: rc mirrors Result.ExitCode's
// convention (0 on a clean exit, the process's real exit code otherwise) but
// also carries the three timeout codes documented below.
type StreamResult struct {
	RC     int
	Output string
}

// ProgressFunc is invoked every ProgressInterval while the command runs,
// with whatever merged stdout+stderr has accumulated so far.
type ProgressFunc func(output string)

// RunStreaming runs argv directly (never inside Docker; long-lived streamed
// commands are always host-side), merging stderr into the same output
// stream and firing onProgress every ProgressInterval.
//
// It returns rc = -1 if AbsoluteTimeout elapses, rc = -2 if no output at all
// arrives within StuckTimeout, or rc = -3 if output arrived but then went
// quiet for StaleTimeout. Any of these kills the process group the same way
// Run's timeout path does.
func (e *Executor) RunStreaming(ctx context.Context, argv []string, opts StreamOpts, onProgress ProgressFunc) (StreamResult, error) {
	if len(argv) == 0 {
		return StreamResult{}, errs.New("sandbox", "RunStreaming", "empty argv", nil)
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = 5 * time.Second
	}

	execCtx, cancel := context.WithTimeout(ctx, opts.AbsoluteTimeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, argv[0], argv[1:]...)
	cmd.Dir = cwdOrDefault(opts.Cwd, e.workspace)
	cmd.Env = buildEnv(opts.Env)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		return StreamResult{}, errs.New("sandbox", "RunStreaming", "failed to start command", err)
	}

	type readResult struct {
		data []byte
		err  error
	}
	reads := make(chan readResult, 1)
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := pr.Read(buf)
			if n > 0 {
				b := make([]byte, n)
				copy(b, buf[:n])
				reads <- readResult{data: b}
			}
			if err != nil {
				reads <- readResult{err: err}
				return
			}
		}
	}()

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	var output bytes.Buffer
	start := time.Now()
	lastOutput := start
	ticker := time.NewTicker(opts.ProgressInterval)
	defer ticker.Stop()

	rc := 0
	killed := false

loop:
	for {
		select {
		case r := <-reads:
			if len(r.data) > 0 {
				output.Write(r.data)
				lastOutput = time.Now()
			}
			if r.err != nil {
				break loop
			}
		case err := <-exited:
			if err != nil {
				if exitErr, ok := err.(*exec.ExitError); ok {
					rc = exitErr.ExitCode()
				}
			}
			pw.Close()
			// the writer is closed now, so the reader goroutine's next
			// read returns EOF almost immediately; drain it to pick up
			// whatever it had buffered before the process exited.
			for {
				r := <-reads
				if len(r.data) > 0 {
					output.Write(r.data)
				}
				if r.err != nil {
					break
				}
			}
			break loop
		case now := <-ticker.C:
			if onProgress != nil {
				onProgress(output.String())
			}
			switch {
			case output.Len() == 0 && opts.StuckTimeout > 0 && now.Sub(start) >= opts.StuckTimeout:
				rc, killed = -2, true
				break loop
			case output.Len() > 0 && opts.StaleTimeout > 0 && now.Sub(lastOutput) >= opts.StaleTimeout:
				rc, killed = -3, true
				break loop
			case now.Sub(start) >= opts.AbsoluteTimeout:
				rc, killed = -1, true
				break loop
			}
		}
	}

	if killed {
		killProcessGroup(cmd, e.log)
	}

	return StreamResult{RC: rc, Output: output.String()}, nil
}
