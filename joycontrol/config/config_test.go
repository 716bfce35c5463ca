package config

import (
	"os"
	"path/filepath"
	"testing"

	"dio.wtf/nxcontrol/joycontrol/controller"
	"github.com/alecthomas/kong"
	kongtoml "github.com/alecthomas/kong-toml"
	kongyaml "github.com/alecthomas/kong-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args []string, options ...kong.Option) (*CLI, error) {
	t.Helper()
	var cli CLI
	options = append([]kong.Option{kong.Name(appName), kong.Exit(func(int) {})}, options...)
	parser, err := kong.New(&cli, options...)
	require.NoError(t, err)
	_, err = parser.Parse(args)
	return &cli, err
}

func TestDefaults(t *testing.T) {
	cli, err := parse(t, nil)
	require.NoError(t, err)
	assert.Equal(t, "info", cli.Log.Level)
	assert.True(t, cli.Interactive)
	assert.False(t, cli.Reconnect)

	c, err := cli.ControllerType()
	require.NoError(t, err)
	assert.Equal(t, controller.ProController, c)
}

func TestFlags(t *testing.T) {
	cli, err := parse(t, []string{
		"-c", "joycon_r", "--log.level=debug", "--no-interactive",
		"--reconnect", "--host", "DC:A6:32:C4:DC:93", "--remove-after-write",
	})
	require.NoError(t, err)
	assert.Equal(t, "debug", cli.Log.Level)
	assert.False(t, cli.Interactive)
	assert.True(t, cli.Reconnect)
	assert.True(t, cli.RemoveAfterWrite)
	assert.Equal(t, "DC:A6:32:C4:DC:93", cli.Host)

	c, err := cli.ControllerType()
	require.NoError(t, err)
	assert.Equal(t, controller.JoyconR, c)
}

func TestUnknownController(t *testing.T) {
	_, err := parse(t, []string{"--controller", "GAMECUBE"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GAMECUBE")
}

func TestConfigurationFiles(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("controller: JOYCON_L\nremove-after-write: true\n"), 0o644))
	tomlPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("reconnect = true\n"), 0o644))

	cli, err := parse(t, []string{"-c", "pro_controller"},
		kong.Configuration(kongyaml.Loader, yamlPath),
		kong.Configuration(kongtoml.Loader, tomlPath),
	)
	require.NoError(t, err)
	assert.Equal(t, "pro_controller", cli.Controller, "flags win over files")
	assert.True(t, cli.RemoveAfterWrite)
	assert.True(t, cli.Reconnect)
}

func TestCandidatePaths(t *testing.T) {
	jsonPaths, yamlPaths, tomlPaths := CandidatePaths("/etc/nx.toml")
	require.NotEmpty(t, tomlPaths)
	assert.Equal(t, "/etc/nx.toml", tomlPaths[0])
	for _, p := range append(jsonPaths, yamlPaths...) {
		assert.NotEqual(t, "/etc/nx.toml", p)
	}

	jsonPaths, _, _ = CandidatePaths("my.JSON")
	assert.Equal(t, "my.JSON", jsonPaths[0])
	_, yamlPaths, _ = CandidatePaths("custom.conf")
	assert.Equal(t, "custom.conf", yamlPaths[0])
}

func TestFindUserConfig(t *testing.T) {
	t.Setenv("NXCONTROL_CONFIG", "")
	assert.Equal(t, "a.yaml", FindUserConfig([]string{"--config=a.yaml"}))
	assert.Equal(t, "b.toml", FindUserConfig([]string{"-r", "--config", "b.toml"}))
	assert.Equal(t, "", FindUserConfig([]string{"--config"}))

	t.Setenv("NXCONTROL_CONFIG", "env.json")
	assert.Equal(t, "env.json", FindUserConfig(nil))
}
