package engine

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"sync"
)

const stderrTailLines = 40

// commandSpec describes one engine process invocation.
type commandSpec struct {
	Name     string
	Args     []string
	Dir      string
	OnStdout func(line string)
	OnStderr func(line string)
}

// commandResult is an internal process execution response.
type commandResult struct {
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, spec commandSpec) (commandResult, error)
}

// execRunner executes commands via os/exec and streams their output by line.
type execRunner struct{}

// Run executes one command, forwarding each output line to the spec callbacks.
func (r *execRunner) Run(ctx context.Context, spec commandSpec) (commandResult, error) {
	cmd := exec.CommandContext(ctx, spec.Name, spec.Args...)
	cmd.Dir = spec.Dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return commandResult{ExitCode: -1}, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return commandResult{ExitCode: -1}, err
	}
	if err := cmd.Start(); err != nil {
		return commandResult{ExitCode: -1}, err
	}

	tail := newLineTail(stderrTailLines)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanLines(stdout, spec.OnStdout)
	}()
	go func() {
		defer wg.Done()
		scanLines(stderr, func(line string) {
			tail.add(line)
			if spec.OnStderr != nil {
				spec.OnStderr(line)
			}
		})
	}()
	wg.Wait()

	err = cmd.Wait()
	result := commandResult{Stderr: tail.String()}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

func scanLines(r io.Reader, fn func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || fn == nil {
			continue
		}
		fn(line)
	}
	// Drain so the process never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}

// lineTail keeps the last n lines written to it.
type lineTail struct {
	mu    sync.Mutex
	max   int
	lines []string
}

func newLineTail(n int) *lineTail {
	return &lineTail{max: n}
}

func (t *lineTail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *lineTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "\n")
}
