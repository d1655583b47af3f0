package bulkissue

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/term"
	"k8s.io/utils/clock"

	"github.com/armadaproject/couponseed/internal/common/util"
)

const ctrlC = 0x03

// Monitor follows executions for an operator, printing every status it reads.
type Monitor struct {
	client   WorkflowClient
	clock    clock.Clock
	interval time.Duration
	out      io.Writer
}

func NewMonitor(client WorkflowClient, clk clock.Clock, interval time.Duration, out io.Writer) *Monitor {
	return &Monitor{client: client, clock: clk, interval: interval, out: out}
}

// Watch polls h until its status is terminal, stop is closed or ctx is done, and returns the last status read.
// Read errors are logged and retried on the next tick. Stopping only stops watching; the execution keeps running.
func (m *Monitor) Watch(ctx context.Context, h ExecutionHandle, stop <-chan struct{}) (string, error) {
	var last string
	for {
		status, err := m.client.Status(ctx, h)
		if err != nil {
			log.WithError(err).Warnf("could not read status of %s", h)
		} else {
			last = status
			fmt.Fprintf(m.out, "%s  %s  %s\r\n", m.clock.Now().Format(time.RFC3339), h, status)
			if IsTerminal(status) {
				return status, nil
			}
		}

		if err := ctx.Err(); err != nil {
			return last, err
		}
		if util.IsClosed(stop) {
			fmt.Fprintf(m.out, "stopped watching %s\r\n", h)
			return last, nil
		}
		timer := m.clock.NewTimer(m.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return last, ctx.Err()
		case <-stop:
			timer.Stop()
			fmt.Fprintf(m.out, "stopped watching %s\r\n", h)
			return last, nil
		case <-timer.C():
		}
	}
}

// WatchAll watches each handle in turn. A stop applies to every handle not yet finished.
func (m *Monitor) WatchAll(ctx context.Context, handles []ExecutionHandle, stop <-chan struct{}) (map[ExecutionHandle]string, error) {
	statuses := make(map[ExecutionHandle]string, len(handles))
	for _, h := range handles {
		status, err := m.Watch(ctx, h, stop)
		statuses[h] = status
		if err != nil {
			return statuses, err
		}
		if util.IsClosed(stop) {
			break
		}
	}
	return statuses, nil
}

// StopKeys returns a channel closed once q, b or Ctrl+C is read from r.
func StopKeys(r io.Reader) <-chan struct{} {
	stop := make(chan struct{})
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				switch buf[0] {
				case 'q', 'Q', 'b', 'B', ctrlC:
					close(stop)
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()
	return stop
}

// RawTerminal puts f into raw mode so single keypresses can be read, if f is a terminal.
// The returned func restores the previous mode.
func RawTerminal(f *os.File) (func(), error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return func() {}, nil
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return func() {}, err
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			_ = term.Restore(fd, state)
		})
	}, nil
}
