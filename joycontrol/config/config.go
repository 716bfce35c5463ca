// Package config defines the command line and configuration files of
// nxcontrol.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"dio.wtf/nxcontrol/joycontrol/controller"
)

const appName = "nxcontrol"

type Log struct {
	Level string `help:"Log level: trace, debug, info, warn, error" default:"info" env:"NXCONTROL_LOG_LEVEL"`
	File  string `help:"Log file path (default: none; logs only to console)" env:"NXCONTROL_LOG_FILE"`
}

// CLI is the root command structure for Kong CLI parsing.
type CLI struct {
	Log `embed:"" prefix:"log."`

	Config           string `help:"Configuration file (json, yaml or toml)" env:"NXCONTROL_CONFIG"`
	Controller       string `short:"c" help:"Emulated controller: JOYCON_L, JOYCON_R or PRO_CONTROLLER" default:"PRO_CONTROLLER"`
	SpiFlash         string `help:"SPI flash dump of a genuine controller (0x80000 bytes)" type:"path"`
	Nfc              string `help:"amiibo dump placed on the reader at start" type:"path"`
	Reconnect        bool   `short:"r" help:"Reconnect to an already paired console instead of pairing"`
	Host             string `help:"Console address to reconnect to (default: first paired console)"`
	Interactive      bool   `default:"true" negatable:"" help:"Open the interactive shell"`
	RemoveAfterWrite bool   `help:"Take the amiibo off the reader after the console wrote to it"`
}

// Validate is called by kong after parsing.
func (c *CLI) Validate() error {
	_, err := c.ControllerType()
	return err
}

func (c *CLI) ControllerType() (controller.Type, error) {
	return controller.ParseType(c.Controller)
}

// CandidatePaths lists the configuration files to try per format. A user
// given path comes first and selects its format by extension.
func CandidatePaths(userConfig string) (jsonPaths, yamlPaths, tomlPaths []string) {
	if userConfig != "" {
		switch strings.ToLower(filepath.Ext(userConfig)) {
		case ".json":
			jsonPaths = append(jsonPaths, userConfig)
		case ".toml":
			tomlPaths = append(tomlPaths, userConfig)
		default:
			yamlPaths = append(yamlPaths, userConfig)
		}
	}

	dir, err := os.UserConfigDir()
	if nil != err {
		return
	}
	base := filepath.Join(dir, appName, "config")
	jsonPaths = append(jsonPaths, base+".json")
	yamlPaths = append(yamlPaths, base+".yaml", base+".yml")
	tomlPaths = append(tomlPaths, base+".toml")
	return
}

// FindUserConfig picks --config out of the raw arguments, before kong runs.
func FindUserConfig(args []string) string {
	for i, a := range args {
		if strings.HasPrefix(a, "--config=") {
			return a[len("--config="):]
		}
		if a == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return os.Getenv("NXCONTROL_CONFIG")
}
