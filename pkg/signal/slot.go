// Package signal hands the latest event payload from one producer task to
// one consumer task.
package signal

import (
	"context"
	"errors"
	"sync"
)

// MaxPayload is the maximum payload length in bytes.
const MaxPayload = 512

// ErrPayloadTooLong is returned when publishing more than MaxPayload bytes.
var ErrPayloadTooLong = errors.New("signal payload too long")

// Slot holds at most one pending payload.
//
// Publish overwrites an unconsumed payload, so the consumer only ever sees
// the latest one.
type Slot struct {
	lock    sync.Mutex
	value   string
	pending bool
	dropped uint64
	notify  chan struct{}
}

// NewSlot creates an empty Slot.
func NewSlot() *Slot {
	return &Slot{notify: make(chan struct{}, 1)}
}

// Publish stores payload, replacing any unconsumed payload. It never blocks.
func (s *Slot) Publish(payload string) error {
	if len(payload) > MaxPayload {
		return ErrPayloadTooLong
	}
	s.lock.Lock()
	if s.pending {
		s.dropped++
	}
	s.value, s.pending = payload, true
	s.lock.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
	return nil
}

// Wait blocks until a payload is pending, then takes it and clears the slot.
func (s *Slot) Wait(ctx context.Context) (string, error) {
	for {
		if v, ok := s.TryTake(); ok {
			return v, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-s.notify:
		}
	}
}

// TryTake takes the pending payload without blocking.
func (s *Slot) TryTake() (string, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.pending {
		return "", false
	}
	v := s.value
	s.value, s.pending = "", false
	return v, true
}

// Dropped returns how many payloads were overwritten before being consumed.
func (s *Slot) Dropped() uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.dropped
}
