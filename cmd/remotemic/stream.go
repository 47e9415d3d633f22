package main

import (
	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/embassist/esp32s3-remote-mic/pkg/config"
	fx "github.com/embassist/esp32s3-remote-mic/pkg/framework"
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Capture the analog input and send frames over the configured transport",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := config.NewConfig().NewDevice()
		if err != nil {
			return err
		}
		defer d.Close()
		err = fx.NewRunner().HandleSignals().Go(d.Runnables()...).Wait()
		glog.Infof("stream stopped after %d frames in %d sessions", d.Pipeline.Frames(), d.Pipeline.Sessions())
		return err
	},
}

func init() {
	rootCmd.AddCommand(streamCmd)
}
