package joycontrol

import (
	"bufio"
	"errors"
	"os"
	"strings"

	"dio.wtf/nxcontrol/joycontrol/log"
	"github.com/muka/go-bluetooth/hw/linux/cmd"
)

const (
	servicePath  = "/lib/systemd/system/bluetooth.service"
	overrideDir  = "/run/systemd/system/bluetooth.service.d"
	overridePath = overrideDir + "/nxcontrol.conf"
)

var errNoExecStart = errors.New("bluetooth.service has no ExecStart")

// compatOverride turns the ExecStart line of the bluetooth unit into one
// running bluetoothd in compat mode without plugins.
func compatOverride(service string) (string, error) {
	scanner := bufio.NewScanner(strings.NewReader(service))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "ExecStart=") {
			return "[Service]\nExecStart=\n" + line + " --compat --noplugin=*\n", nil
		}
	}
	return "", errNoExecStart
}

// toggleCleanBluez restarts bluetoothd with (flag) or without the compat
// override. Systems without systemd are left alone.
func toggleCleanBluez(flag bool) {
	ret, err := cmd.Exec("ps", "--no-headers", "-o", "comm", "1")
	if nil != err || strings.TrimSpace(ret) != "systemd" {
		return
	}

	if flag {
		if _, err := os.Stat(overridePath); nil == err {
			// Override exist, no need to restart bluetooth
			return
		}

		service, err := os.ReadFile(servicePath)
		if nil != err {
			log.Error(err)
			return
		}
		override, err := compatOverride(string(service))
		if nil != err {
			log.Error(err)
			return
		}

		if err = os.MkdirAll(overrideDir, os.ModePerm); nil != err {
			log.Error(err)
			return
		}
		if err = os.WriteFile(overridePath, []byte(override), 0644); nil != err {
			log.Error(err)
			return
		}
		log.Debug("Override conf")
	} else {
		if err := os.Remove(overridePath); nil != err {
			if !errors.Is(err, os.ErrNotExist) {
				log.Error(err)
			}
			return
		}
		log.Debug("Remove conf")
	}

	cmd.Exec("systemctl", "daemon-reload")
	cmd.Exec("systemctl", "restart", "bluetooth")
	log.Debug("systemd found and bluetooth reloaded")
}
