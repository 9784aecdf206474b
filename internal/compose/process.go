package compose

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
)

// Process is an entry point that runs a cached executable as a child
// process. OnComplete fires as soon as the process has started.
type Process struct {
	Path   string
	Args   []string
	Stdout io.Writer
	Stderr io.Writer

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

// OnLaunch starts the executable in the cache root with the extended PATH
func (p *Process) OnLaunch(env *Env) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil {
		return errors.New("process already launched")
	}

	if err := ensureExecutable(p.Path); err != nil {
		return err
	}

	args := append(append([]string(nil), p.Args...), env.Args()...)
	cmd := exec.Command(p.Path, args...) //#nosec G204 path comes from a verified manifest
	cmd.Dir = env.Root()
	cmd.Env = env.Environ()
	cmd.Stdin = os.Stdin
	cmd.Stdout = p.Stdout
	cmd.Stderr = p.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", p.Path, err)
	}

	p.cmd = cmd
	p.done = make(chan struct{})
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()

	env.Complete()

	return nil
}

// OnComplete is a no-op; startup ends when the process is running
func (p *Process) OnComplete() {}

// Wait blocks until the process exits and returns its exit error
func (p *Process) Wait() error {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	if done == nil {
		return errors.New("process not launched")
	}
	<-done

	return p.err
}

// ensureExecutable adds execute permission that the download did not set
func ensureExecutable(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat executable: %w", err)
	}
	if info.Mode().Perm()&0111 != 0 {
		return nil
	}
	if err := os.Chmod(path, info.Mode().Perm()|0755); err != nil {
		return fmt.Errorf("make executable: %w", err)
	}

	return nil
}
