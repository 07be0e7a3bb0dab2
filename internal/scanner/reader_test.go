package scanner

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/tillworks/pos-bridge/internal/broadcast"
	"github.com/tillworks/pos-bridge/internal/config"
	"github.com/tillworks/pos-bridge/internal/serialport"
)

type readStep struct {
	data []byte
	err  error
}

// scriptPort replays a fixed sequence of reads, then fails.
type scriptPort struct {
	steps []readStep
	idx   int
}

func (p *scriptPort) Read(b []byte) (int, error) {
	if p.idx >= len(p.steps) {
		return 0, io.EOF
	}
	step := p.steps[p.idx]
	p.idx++
	if step.err != nil {
		return 0, step.err
	}
	return copy(b, step.data), nil
}

func (p *scriptPort) Close() error { return nil }

func testReader(t *testing.T, ports []*scriptPort) (*Reader, *broadcast.Broadcaster) {
	t.Helper()

	cfg := config.Scanner{
		Fallback:      "/dev/null",
		BaudRate:      9600,
		ReadTimeoutMS: 10,
		BackoffMS:     1,
	}

	bus := broadcast.New(16)
	r := NewReader(cfg, bus)

	var n int
	r.open = func(path string, s serialport.Settings) (io.ReadCloser, error) {
		if n >= len(ports) {
			return nil, errors.New("port gone")
		}
		port := ports[n]
		n++
		return port, nil
	}

	return r, bus
}

func collect(t *testing.T, sub *broadcast.Subscriber, want int) []string {
	t.Helper()

	var got []string
	for len(got) < want {
		select {
		case code := <-sub.C:
			got = append(got, code)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, got %q so far", got)
		}
	}
	return got
}

func TestReaderPublishesFramedCodes(t *testing.T) {
	port := &scriptPort{steps: []readStep{
		{data: []byte("400638")},
		{data: nil}, // read timeout, must be retried not treated as error
		{data: []byte("1333931\n")},
		{data: []byte("]E040123455\r\n")},
		{data: []byte("\r\n")}, // no digits, never published
		{data: []byte("777\n")},
	}}

	r, bus := testReader(t, []*scriptPort{port})
	sub := bus.Register()
	defer bus.Unregister(sub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	got := collect(t, sub, 3)
	cancel()
	<-done

	want := []string{"4006381333931", "040123455", "777"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("code %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestReaderReconnectsAfterTransportError(t *testing.T) {
	first := &scriptPort{steps: []readStep{
		{data: []byte("11111111\n")},
		{data: []byte("222")}, // mid-frame when the device drops
		{err: errors.New("device unplugged")},
	}}
	second := &scriptPort{steps: []readStep{
		{data: []byte("33333333\n")},
	}}

	r, bus := testReader(t, []*scriptPort{first, second})
	sub := bus.Register()
	defer bus.Unregister(sub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	got := collect(t, sub, 2)
	cancel()
	<-done

	// The partial "222" buffer is discarded with the dead connection; the
	// reader resumes with fresh frames only.
	if got[0] != "11111111" || got[1] != "33333333" {
		t.Errorf("got codes %q, want [11111111 33333333]", got)
	}
}

func TestReaderSurvivesOpenFailure(t *testing.T) {
	port := &scriptPort{steps: []readStep{
		{data: []byte("88888888\n")},
	}}

	cfg := config.Scanner{
		Fallback:      "/dev/null",
		BaudRate:      9600,
		ReadTimeoutMS: 10,
		BackoffMS:     1,
	}

	bus := broadcast.New(16)
	r := NewReader(cfg, bus)

	var attempts int
	r.open = func(path string, s serialport.Settings) (io.ReadCloser, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("no such device")
		}
		return port, nil
	}

	sub := bus.Register()
	defer bus.Unregister(sub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	got := collect(t, sub, 1)
	cancel()
	<-done

	if got[0] != "88888888" {
		t.Errorf("got %q, want 88888888", got[0])
	}
	if attempts < 3 {
		t.Errorf("expected at least 3 open attempts, got %d", attempts)
	}
}
