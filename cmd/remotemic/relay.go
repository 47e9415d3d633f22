package main

import (
	"context"
	"net/http"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	fx "github.com/embassist/esp32s3-remote-mic/pkg/framework"
	"github.com/embassist/esp32s3-remote-mic/pkg/receiver"
)

var relayListen string

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run a websocket relay forwarding device frames to listeners",
	RunE: func(cmd *cobra.Command, args []string) error {
		relay := receiver.NewRelay()
		server := &http.Server{Addr: relayListen, Handler: relay.Handler()}
		glog.Infof("relay: listening on %s", relayListen)
		run := fx.RunFunc(func(ctx context.Context) error {
			return fx.RunWithContextCancel(ctx, func() { server.Close() }, server.ListenAndServe)
		})
		return fx.NewRunner().HandleSignals().Go(fx.NamedRun("relay", run)).Wait()
	},
}

func init() {
	relayCmd.Flags().StringVar(&relayListen, "listen", ":8080", "Listen address")
	rootCmd.AddCommand(relayCmd)
}
