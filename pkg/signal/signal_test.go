package signal

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	fx "github.com/embassist/esp32s3-remote-mic/pkg/framework"
)

func TestSlotLatestWins(t *testing.T) {
	s := NewSlot()
	require.NoError(t, s.Publish("V1"))
	require.NoError(t, s.Publish("V2"))
	v, err := s.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, "V2", v)
	require.Equal(t, uint64(1), s.Dropped())

	_, ok := s.TryTake()
	require.False(t, ok, "V1 must never be delivered")
}

func TestSlotWaitBlocksUntilPublish(t *testing.T) {
	s := NewSlot()
	got := make(chan string, 1)
	go func() {
		v, err := s.Wait(context.Background())
		if err == nil {
			got <- v
		}
	}()
	select {
	case <-got:
		t.Fatal("consumed from an empty slot")
	case <-time.After(20 * time.Millisecond):
	}
	require.NoError(t, s.Publish(Pressed))
	select {
	case v := <-got:
		require.Equal(t, Pressed, v)
	case <-time.After(time.Second):
		t.Fatal("consumer not woken up")
	}
}

func TestSlotWaitCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSlot().Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSlotPayloadBound(t *testing.T) {
	s := NewSlot()
	require.ErrorIs(t, s.Publish(strings.Repeat("x", MaxPayload+1)), ErrPayloadTooLong)
	require.NoError(t, s.Publish(strings.Repeat("x", MaxPayload)))
}

func press(pin *gpiotest.Pin, level gpio.Level) {
	pin.Lock()
	pin.L = level
	pin.Unlock()
}

type tickContext struct {
	tick uint64
}

func (c *tickContext) Context() context.Context { return context.Background() }
func (c *tickContext) Time() time.Time          { return time.Now() }
func (c *tickContext) Tick() uint64             { return c.tick }
func (c *tickContext) PriorityLevel() int       { return fx.PrLvSense }

func TestButtonPublishesOnPress(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO9", Num: 9}
	slot := NewSlot()
	b := NewButton(pin, slot)
	require.NoError(t, b.Setup())
	require.Equal(t, gpio.PullUp, pin.Pull())
	require.Equal(t, gpio.High, pin.Read())

	cases := []struct {
		level     gpio.Level
		published bool
	}{
		{gpio.High, false},
		{gpio.Low, true},
		{gpio.Low, false},
		{gpio.High, false},
		{gpio.Low, true},
	}
	cc := &tickContext{}
	for _, c := range cases {
		cc.tick++
		press(pin, c.level)
		require.NoError(t, b.Control(cc))
		v, ok := slot.TryTake()
		require.Equal(t, c.published, ok, "tick %d", cc.tick)
		if ok {
			require.Equal(t, Pressed, v)
		}
	}
}

func TestButtonActiveHigh(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO4", Num: 4}
	slot := NewSlot()
	b := NewButton(pin, slot)
	b.ActiveLow, b.Payload = false, "UP"
	require.NoError(t, b.Setup())
	require.Equal(t, gpio.PullDown, pin.Pull())

	loop := fx.NewLoop(time.Millisecond).Add(b)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()
	press(pin, gpio.High)
	v, err := slot.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, "UP", v)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

type failingPort struct {
	bytes.Buffer
	flushErr error
	flushes  int
}

func (p *failingPort) Flush() error {
	p.flushes++
	return p.flushErr
}

type syncPort struct {
	lock    sync.Mutex
	buf     bytes.Buffer
	flushed chan string
}

func (p *syncPort) Write(b []byte) (int, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.buf.Write(b)
}

func (p *syncPort) Flush() error {
	p.lock.Lock()
	s := p.buf.String()
	p.buf.Reset()
	p.lock.Unlock()
	p.flushed <- s
	return nil
}

func TestWriterWritesAndFlushes(t *testing.T) {
	slot := NewSlot()
	port := &syncPort{flushed: make(chan string, 4)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewWriter(slot, port).Run(ctx) }()

	require.NoError(t, slot.Publish(Pressed))
	select {
	case s := <-port.flushed:
		require.Equal(t, Pressed, s)
	case <-time.After(time.Second):
		t.Fatal("payload not flushed")
	}
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestWriterFlushFailureIsFatal(t *testing.T) {
	slot := NewSlot()
	fault := errors.New("usb detached")
	port := &failingPort{flushErr: fault}
	require.NoError(t, slot.Publish(Pressed))
	err := NewWriter(slot, port).Run(context.Background())
	require.ErrorIs(t, err, fault)
	require.Equal(t, Pressed, port.String())
	require.Equal(t, 1, port.flushes)
}
