package mqtt

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"

	"github.com/embassist/esp32s3-remote-mic/pkg/link"
)

// LinkStatus is the link state event of a device.
type LinkStatus struct {
	Device    string `protobuf:"bytes,1,opt,name=device,proto3" json:"device,omitempty"`
	State     int32  `protobuf:"varint,2,opt,name=state,proto3" json:"state,omitempty"`
	StateName string `protobuf:"bytes,3,opt,name=state_name,proto3" json:"state_name,omitempty"`
	// Timestamp is in unix milliseconds.
	Timestamp int64 `protobuf:"varint,4,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *LinkStatus) ProtoMessage() {}

// Reset implements proto.Message.
func (m *LinkStatus) Reset() { *m = LinkStatus{} }

// String implements proto.Message.
func (m *LinkStatus) String() string { return proto.CompactTextString(m) }

// LinkState converts State back.
func (m *LinkStatus) LinkState() link.State { return link.State(m.State) }

// DecodeLinkStatus decodes a payload from the link topic.
func DecodeLinkStatus(payload []byte) (*LinkStatus, error) {
	var m LinkStatus
	if err := proto.Unmarshal(payload, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// LinkReporter publishes every link state change as a retained LinkStatus.
// Publish failures are logged and skipped.
type LinkReporter struct {
	Queue  *Queue
	Device string
	Link   link.Reader
}

// Name implements Named.
func (r *LinkReporter) Name() string {
	return "link-reporter"
}

// Run implements Runnable.
func (r *LinkReporter) Run(ctx context.Context) error {
	last := link.State(-1)
	for {
		changed := r.Link.Changed()
		if state := r.Link.Load(); state != last {
			if err := r.publish(ctx, state); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				glog.Warningf("mqtt: link status %s not published: %v", state, err)
			}
			last = state
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

func (r *LinkReporter) publish(ctx context.Context, state link.State) error {
	payload, err := proto.Marshal(&LinkStatus{
		Device:    r.Device,
		State:     int32(state),
		StateName: state.String(),
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	return r.Queue.Pub(ctx, r.Device+"/"+LinkTopic, payload, 1, true)
}
