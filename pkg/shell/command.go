package shell

import (
	"context"
	"errors"
	"os/exec"
	"sync"
)

var ErrEmptyCommand = errors.New("shell: empty command")

// Command like exec.Cmd, but with support:
// - io.Closer interface
// - Wait from multiple places
// - Done channel
type Command struct {
	*exec.Cmd
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	err    error
}

// NewCommand splits s with QuoteSplit. The process is killed when ctx is done or on Close.
func NewCommand(ctx context.Context, s string) (*Command, error) {
	args := QuoteSplit(s)
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.SysProcAttr = procAttr
	return &Command{Cmd: cmd, ctx: ctx, cancel: cancel}, nil
}

func (c *Command) Start() error {
	if err := c.Cmd.Start(); err != nil {
		c.cancel()
		return err
	}

	go func() {
		c.err = c.Cmd.Wait()
		c.cancel() // release context resources
	}()

	return nil
}

func (c *Command) Wait() error {
	<-c.ctx.Done()
	return c.err
}

func (c *Command) Run() error {
	if err := c.Start(); err != nil {
		return err
	}
	return c.Wait()
}

func (c *Command) Done() <-chan struct{} {
	return c.ctx.Done()
}

func (c *Command) Close() error {
	c.once.Do(c.cancel)
	return nil
}
