package main

import (
	"fmt"
	"net/netip"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/embassist/esp32s3-remote-mic/pkg/config"
	fx "github.com/embassist/esp32s3-remote-mic/pkg/framework"
	"github.com/embassist/esp32s3-remote-mic/pkg/receiver"
)

var (
	receiveFrom   string
	receiveListen string
	receiveOut    string
)

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Record frames from a device into a WAV file",
	Long: `receive records the frames of a device until interrupted and writes them
as a WAV file.

With the udp transport it announces itself to the device (--from host:port)
so a device learning its peer starts sending. With the mqtt transport it
subscribes to the audio topic of --device.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf := config.NewConfig()
		rec := &receiver.Recording{}
		var task fx.Runnable
		switch conf.Transport {
		case config.TransportUDP:
			device, err := netip.ParseAddrPort(receiveFrom)
			if err != nil {
				return fmt.Errorf("invalid device address %q: %w", receiveFrom, err)
			}
			r := receiver.NewUDPReceiver(device, rec)
			r.Listen = receiveListen
			task = r
		case config.TransportMQTT:
			q, err := conf.NewQueue()
			if err != nil {
				return err
			}
			defer q.Close()
			task = &receiver.MQTTReceiver{Queue: q, Device: conf.Device, Recording: rec}
		default:
			return fmt.Errorf("receive over %q is not supported", conf.Transport)
		}

		err := fx.NewRunner().HandleSignals().Go(task).Wait()
		glog.Infof("received %d frames, %d sessions, %s of audio", rec.Frames(), rec.Headers(), rec.Duration())
		if rec.Frames() == 0 {
			return err
		}
		if saveErr := rec.Save(receiveOut); saveErr != nil {
			return saveErr
		}
		glog.Infof("saved %s", receiveOut)
		return err
	},
}

func init() {
	receiveCmd.Flags().StringVar(&receiveFrom, "from", "", "Device address host:port (udp)")
	receiveCmd.Flags().StringVar(&receiveListen, "listen", "", "Local UDP address")
	receiveCmd.Flags().StringVarP(&receiveOut, "out", "o", "received.wav", "Output WAV file")
	rootCmd.AddCommand(receiveCmd)
}
