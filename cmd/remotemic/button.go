package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/embassist/esp32s3-remote-mic/pkg/config"
	fx "github.com/embassist/esp32s3-remote-mic/pkg/framework"
	"github.com/embassist/esp32s3-remote-mic/pkg/signal"
	"github.com/embassist/esp32s3-remote-mic/pkg/transport/stream"
)

var buttonToStdout bool

var buttonCmd = &cobra.Command{
	Use:   "button",
	Short: "Write PRESSED to the serial port on every button press",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf := config.NewConfig()
		if _, err := host.Init(); err != nil {
			return fmt.Errorf("periph init: %w", err)
		}
		pin := gpioreg.ByName(conf.Button.Pin)
		if pin == nil {
			return fmt.Errorf("unknown GPIO pin %q", conf.Button.Pin)
		}

		var port stream.Port
		if buttonToStdout {
			port = stream.PortOf(os.Stdout)
		} else {
			serial, err := stream.OpenSerial(conf.Serial.Device, conf.Serial.BaudRate)
			if err != nil {
				return err
			}
			defer serial.Close()
			port = serial
		}

		slot := signal.NewSlot()
		button := signal.NewButton(pin, slot)
		button.ActiveLow = !conf.Button.ActiveHigh
		if err := button.Setup(); err != nil {
			return fmt.Errorf("setup %s: %w", pin, err)
		}
		loop := fx.NewLoop(conf.Button.PollInterval).Add(button)
		return fx.NewRunner().HandleSignals().Go(
			fx.NamedRun("button", loop),
			signal.NewWriter(slot, port),
		).Wait()
	},
}

func init() {
	buttonCmd.Flags().BoolVar(&buttonToStdout, "stdout", false, "Write to stdout instead of the serial port")
	rootCmd.AddCommand(buttonCmd)
}
