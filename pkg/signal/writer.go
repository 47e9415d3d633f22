package signal

import (
	"context"
	"fmt"

	"github.com/golang/glog"

	"github.com/embassist/esp32s3-remote-mic/pkg/transport/stream"
)

// Writer consumes payloads from Slot and writes each to Port, flushing after
// every payload. A write or flush failure stops Run.
type Writer struct {
	Slot *Slot
	Port stream.Port
}

// NewWriter creates a Writer.
func NewWriter(slot *Slot, port stream.Port) *Writer {
	return &Writer{Slot: slot, Port: port}
}

// Name implements Named.
func (w *Writer) Name() string {
	return "signal-writer"
}

// Run implements Runnable.
func (w *Writer) Run(ctx context.Context) error {
	for {
		payload, err := w.Slot.Wait(ctx)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprint(w.Port, payload); err != nil {
			return fmt.Errorf("signal write: %w", err)
		}
		if err := w.Port.Flush(); err != nil {
			return fmt.Errorf("signal flush: %w", err)
		}
		glog.V(4).Infof("signal %q written", payload)
	}
}
