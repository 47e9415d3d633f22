package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embassist/esp32s3-remote-mic/pkg/config"
)

func TestConfigFileArg(t *testing.T) {
	cases := []struct {
		args []string
		path string
	}{
		{[]string{"stream", "--config", "mic.yaml"}, "mic.yaml"},
		{[]string{"--config=mic.yaml", "stream"}, "mic.yaml"},
		{[]string{"stream", "-config", "a.yaml"}, "a.yaml"},
		{[]string{"stream", "--port", "9000"}, ""},
		{[]string{"stream", "--config"}, ""},
		{[]string{"stream", "--", "--config", "x.yaml"}, ""},
		{[]string{"config"}, ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.path, configFileArg(c.args), "%v", c.args)
	}
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	saved := *config.Default()
	defer func() { *config.Default() = saved }()

	path := filepath.Join(t.TempDir(), "mic.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transport: mqtt\nrescale: width\n"), 0644))
	args := []string{"--config", path, "--transport", "stream"}
	require.NoError(t, loadConfigFile(args))
	require.NoError(t, rootCmd.PersistentFlags().Parse(args))

	c := config.NewConfig()
	assert.Equal(t, config.TransportStream, c.Transport)
	assert.Equal(t, "width", c.Rescale)
	assert.Equal(t, path, configFile)
}

func TestLoadConfigFileMissing(t *testing.T) {
	require.Error(t, loadConfigFile([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}))
	require.NoError(t, loadConfigFile([]string{"stream"}))
}
