package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"os"
	"strings"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/embassist/esp32s3-remote-mic/pkg/config"
)

var rootCmd = &cobra.Command{
	Use:   "remotemic",
	Short: "Remote microphone: stream analog audio frames to a receiver",
	Long: `remotemic samples an analog input at a fixed rate, packs the samples into
16-bit PCM frames and sends them over a serial stream, UDP, websocket or MQTT.

Settings come from defaults, REMOTEMIC_* environment variables, the --config
YAML file and flags, each overriding the previous.

Commands:
  stream:  capture and send frames
  button:  forward button presses to a serial port
  receive: record frames sent by a device into a WAV file
  relay:   websocket relay between a device and listeners`,
	SilenceUsage: true,
}

var configFile string

func init() {
	config.SetupFlags(nil)
	// Loaded by loadConfigFile before flags are parsed.
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file")
	// glog and device flags live on the standard flag set.
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
}

// configFileArg finds the --config value in args.
func configFileArg(args []string) string {
	for n, arg := range args {
		if arg == "--" {
			break
		}
		name := strings.TrimLeft(arg, "-")
		if name == arg {
			continue
		}
		if val, ok := strings.CutPrefix(name, "config="); ok {
			return val
		}
		if name == "config" && n+1 < len(args) {
			return args[n+1]
		}
	}
	return ""
}

// loadConfigFile applies the --config file to the defaults the flags are
// bound to, so flags parsed afterwards take precedence.
func loadConfigFile(args []string) error {
	path := configFileArg(args)
	if path == "" {
		return nil
	}
	return config.Default().LoadFile(path)
}

func main() {
	// glog complains about logging before flag.Parse.
	flag.CommandLine.Parse(nil)
	if err := loadConfigFile(os.Args[1:]); err != nil {
		glog.Error(err)
		glog.Flush()
		os.Exit(1)
	}
	err := rootCmd.Execute()
	glog.Flush()
	if err != nil {
		os.Exit(1)
	}
}
