package receiver

import (
	"context"

	"github.com/golang/glog"

	"github.com/embassist/esp32s3-remote-mic/pkg/transport/mqtt"
)

// MQTTReceiver records the audio topic of a device and logs its stream
// metadata and link status.
type MQTTReceiver struct {
	Queue     *mqtt.Queue
	Device    string
	Recording *Recording
}

// Name implements Named.
func (r *MQTTReceiver) Name() string {
	return "mqtt-receiver"
}

// Run implements Runnable.
func (r *MQTTReceiver) Run(ctx context.Context) error {
	frames := make(chan []byte, 16)
	handlers := map[string]mqtt.Handler{
		mqtt.AudioTopic: func(_ string, payload []byte) {
			select {
			case frames <- payload:
			default:
				glog.Warningf("receiver: frame dropped, consumer too slow")
			}
		},
		mqtt.MetaTopic: func(_ string, payload []byte) {
			glog.Infof("receiver: stream meta %s", payload)
		},
		mqtt.LinkTopic: func(_ string, payload []byte) {
			if status, err := mqtt.DecodeLinkStatus(payload); err == nil {
				glog.Infof("receiver: device link %s", status.LinkState())
			}
		},
	}
	for suffix, handler := range handlers {
		sub, _ := r.Queue.Sub(r.Device+"/"+suffix, handler)
		defer sub.Close()
	}

	if !r.Queue.Connected() {
		if err := r.Queue.Connect(ctx); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data := <-frames:
			if err := r.Recording.Add(data); err != nil {
				glog.Warningf("receiver: bad frame: %v", err)
			}
		}
	}
}
