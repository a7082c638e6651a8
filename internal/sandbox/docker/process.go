package docker

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"

	"github.com/sandpad/sandpad/internal/sandbox"
)

// Spawn starts a process inside the sandbox through the docker CLI. TTY
// processes run under a local pseudo-terminal so that input, output and
// window size flow through a single stream pair.
func (e *Engine) Spawn(ctx context.Context, id string, command []string, opts sandbox.SpawnOpts) (sandbox.Process, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("command cannot be empty")
	}

	args := []string{"exec", "-i"}
	if opts.Tty {
		args = append(args, "-t")
	}
	workdir := opts.Workdir
	if workdir == "" {
		workdir = e.workdir(id)
	}
	args = append(args, "-w", workdir)
	for k, v := range opts.Env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}
	args = append(args, e.containerName(id))
	args = append(args, command...)

	e.logger.Debugf("Spawning in sandbox %s: docker %v", id, args)

	cmd := exec.CommandContext(ctx, "docker", args...)

	if opts.Tty {
		return startTtyProcess(cmd, opts.Cols, opts.Rows)
	}
	return startPipeProcess(cmd)
}

// ttyProcess is a process running under a local PTY. The PTY master carries
// both input and output; resizing the master propagates the new window size
// to the remote terminal.
type ttyProcess struct {
	cmd  *exec.Cmd
	ptmx *os.File

	done     chan struct{}
	exitOnce sync.Once
	exitCode int
}

func startTtyProcess(cmd *exec.Cmd, cols, rows int) (*ttyProcess, error) {
	if cols <= 0 {
		cols = 80
	}
	if rows <= 0 {
		rows = 24
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
	if err != nil {
		return nil, fmt.Errorf("could not start PTY process: %w", err)
	}

	p := &ttyProcess{
		cmd:  cmd,
		ptmx: ptmx,
		done: make(chan struct{}),
	}

	go p.monitor()

	return p, nil
}

func (p *ttyProcess) monitor() {
	err := p.cmd.Wait()
	p.exitOnce.Do(func() {
		p.exitCode = exitCodeFromErr(err)
		close(p.done)
	})
	p.ptmx.Close()
}

func (p *ttyProcess) Write(b []byte) (int, error) { return p.ptmx.Write(b) }

func (p *ttyProcess) Output() io.Reader { return eofReader{r: p.ptmx} }

func (p *ttyProcess) Resize(cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return fmt.Errorf("invalid terminal dimensions %dx%d", cols, rows)
	}
	return pty.Setsize(p.ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
}

func (p *ttyProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	// The process may already be gone, killing twice is fine.
	_ = p.cmd.Process.Kill()
	return nil
}

func (p *ttyProcess) Wait(ctx context.Context) (int, error) {
	select {
	case <-ctx.Done():
		return -1, ctx.Err()
	case <-p.done:
		return p.exitCode, nil
	}
}

// pipeProcess is a non-TTY process with piped stdin and a combined
// stdout/stderr stream.
type pipeProcess struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	outR  *io.PipeReader

	done     chan struct{}
	exitCode int
}

func startPipeProcess(cmd *exec.Cmd) (*pipeProcess, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("could not open stdin pipe: %w", err)
	}

	outR, outW := io.Pipe()
	cmd.Stdout = outW
	cmd.Stderr = outW

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("could not start process: %w", err)
	}

	p := &pipeProcess{
		cmd:   cmd,
		stdin: stdin,
		outR:  outR,
		done:  make(chan struct{}),
	}

	go func() {
		err := cmd.Wait()
		p.exitCode = exitCodeFromErr(err)
		outW.Close()
		close(p.done)
	}()

	return p, nil
}

func (p *pipeProcess) Write(b []byte) (int, error) { return p.stdin.Write(b) }

func (p *pipeProcess) Output() io.Reader { return p.outR }

func (p *pipeProcess) Resize(cols, rows int) error {
	return fmt.Errorf("process has no terminal to resize")
}

func (p *pipeProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	_ = p.cmd.Process.Kill()
	return nil
}

func (p *pipeProcess) Wait(ctx context.Context) (int, error) {
	select {
	case <-ctx.Done():
		return -1, ctx.Err()
	case <-p.done:
		return p.exitCode, nil
	}
}

func exitCodeFromErr(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}

// eofReader converts the EIO a PTY master returns after the child exits into
// a plain EOF so consumers can use standard stream loops.
type eofReader struct {
	r io.Reader
}

func (e eofReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err != nil && err != io.EOF {
		return n, io.EOF
	}
	return n, err
}
