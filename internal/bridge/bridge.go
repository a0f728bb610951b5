package bridge

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"os/signal"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/penwyp/go-claude-wrap/internal/util"
)

// Rewriter transforms one outgoing output chunk before it reaches the real
// terminal.
type Rewriter func(chunk []byte) []byte

// Observer consumes one raw output chunk for side effects only.
type Observer func(chunk []byte)

// Bridge runs the wrapped program under a PTY and fans its output out to
// observers and a rewriter before forwarding it. Chunk boundaries are
// whatever the PTY read returns; a pattern split across two chunks is a
// known limitation the consumers accept.
type Bridge struct {
	command   string
	args      []string
	observers []Observer
	rewriter  Rewriter
}

// New creates a bridge for the given command.
func New(command string, args []string) *Bridge {
	return &Bridge{
		command:  command,
		args:     args,
		rewriter: func(chunk []byte) []byte { return chunk },
	}
}

// OnOutput registers a side-effecting observer of raw output chunks.
func (b *Bridge) OnOutput(fn Observer) {
	b.observers = append(b.observers, fn)
}

// SetRewriter installs the chunk rewriter. Only one is supported; the last
// call wins.
func (b *Bridge) SetRewriter(fn Rewriter) {
	b.rewriter = fn
}

// Run spawns the wrapped program and pumps its terminal until it exits.
// The child's exit code is returned; it is the only status callers should
// surface, whatever the wrapper's own components did.
func (b *Bridge) Run(ctx context.Context) (int, error) {
	cmd := exec.CommandContext(ctx, b.command, b.args...)

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return -1, err
	}
	defer func() { _ = ptmx.Close() }()

	// Keep the child's window size in lockstep with the real terminal.
	winch := make(chan os.Signal, 1)
	signal.Notify(winch, unix.SIGWINCH)
	go func() {
		for range winch {
			if err := pty.InheritSize(os.Stdin, ptmx); err != nil {
				util.LogWarnf("Resize failed: %v", err)
			}
		}
	}()
	winch <- unix.SIGWINCH
	defer func() { signal.Stop(winch); close(winch) }()

	// The wrapped program owns the interactive experience; raw mode hands
	// it every keystroke untouched.
	stdinFd := int(os.Stdin.Fd())
	if term.IsTerminal(stdinFd) {
		oldState, err := term.MakeRaw(stdinFd)
		if err != nil {
			return -1, err
		}
		defer func() { _ = term.Restore(stdinFd, oldState) }()
	}

	// Forward interrupt-style signals to the child rather than dying
	// around it.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGINT, unix.SIGTERM, unix.SIGHUP)
	go func() {
		for sig := range sigs {
			if cmd.Process != nil {
				_ = cmd.Process.Signal(sig)
			}
		}
	}()
	defer func() { signal.Stop(sigs); close(sigs) }()

	go func() {
		_, _ = io.Copy(ptmx, os.Stdin)
	}()

	b.pumpOutput(ptmx)

	err = cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return -1, err
	}
	return 0, nil
}

// pumpOutput reads PTY output chunk by chunk, feeds the observers, runs
// the rewriter and forwards the result to the real terminal. It returns
// when the PTY closes.
func (b *Bridge) pumpOutput(ptmx *os.File) {
	buf := make([]byte, 32*1024)
	for {
		n, err := ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])

			for _, observe := range b.observers {
				observe(chunk)
			}
			if _, werr := os.Stdout.Write(b.rewriter(chunk)); werr != nil {
				util.LogErrorf("Terminal write failed: %v", werr)
			}
		}
		if err != nil {
			// Linux reports EIO when the child side of the PTY closes;
			// either way the stream is over.
			return
		}
	}
}
