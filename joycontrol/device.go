package joycontrol

import (
	"path"

	"dio.wtf/nxcontrol/joycontrol/log"
	"github.com/godbus/dbus/v5"
	"github.com/muka/go-bluetooth/bluez"
	"github.com/muka/go-bluetooth/bluez/profile/adapter"
	"github.com/muka/go-bluetooth/bluez/profile/device"
	"github.com/muka/go-bluetooth/bluez/profile/profile"
	"github.com/muka/go-bluetooth/hw/linux/cmd"
	"golang.org/x/exp/slices"
)

const switchName = "Nintendo Switch"

type managedObjects = map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// Device is the local Bluetooth adapter the controller is served from.
type Device struct {
	*adapter.Adapter1
	hci string
}

// NewDevice picks the first adapter by object path, so hci0 wins over hci1.
func NewDevice() (*Device, error) {
	objects, err := getManagedObjects()
	if nil != err {
		return nil, err
	}
	adapterPath, ok := firstAdapter(objects)
	if !ok {
		return nil, ErrNoAdapter
	}
	adapter1, err := adapter.NewAdapter1(adapterPath)
	if nil != err {
		return nil, err
	}
	log.DebugF("Using adapter under object path: %s", adapterPath)
	return &Device{
		Adapter1: adapter1,
		hci:      path.Base(string(adapterPath)),
	}, nil
}

func firstAdapter(objects managedObjects) (dbus.ObjectPath, bool) {
	var paths []string
	for p, ifaces := range objects {
		if _, ok := ifaces[adapter.Adapter1Interface]; ok {
			paths = append(paths, string(p))
		}
	}
	if len(paths) == 0 {
		return "", false
	}
	slices.Sort(paths)
	return dbus.ObjectPath(paths[0]), true
}

// console is a Switch as BlueZ sees it.
type console struct {
	path      dbus.ObjectPath
	address   string
	paired    bool
	connected bool
}

// consoles lists every known device named like a Switch, sorted by path.
func consoles(objects managedObjects) []console {
	var found []console
	for p, ifaces := range objects {
		props, ok := ifaces[device.Device1Interface]
		if !ok {
			continue
		}
		name, _ := props["Name"].Value().(string)
		alias, _ := props["Alias"].Value().(string)
		if name != switchName && alias != switchName {
			continue
		}
		c := console{path: p}
		c.address, _ = props["Address"].Value().(string)
		c.paired, _ = props["Paired"].Value().(bool)
		c.connected, _ = props["Connected"].Value().(bool)
		found = append(found, c)
	}
	slices.SortFunc(found, func(a, b console) bool { return a.path < b.path })
	return found
}

func (d *Device) consoles() ([]console, error) {
	objects, err := getManagedObjects()
	if nil != err {
		return nil, err
	}
	return consoles(objects), nil
}

// PairedSwitches returns the addresses of consoles paired with the adapter.
func (d *Device) PairedSwitches() ([]string, error) {
	found, err := d.consoles()
	if nil != err {
		return nil, err
	}
	var addrs []string
	for _, c := range found {
		if c.paired {
			addrs = append(addrs, c.address)
		}
	}
	return addrs, nil
}

// FindConnectedSwitches returns the object paths of connected consoles.
func (d *Device) FindConnectedSwitches() ([]string, error) {
	found, err := d.consoles()
	if nil != err {
		return nil, err
	}
	var paths []string
	for _, c := range found {
		if c.connected {
			paths = append(paths, string(c.path))
		}
	}
	return paths, nil
}

// SetClass changes the device class, BlueZ offers no dbus call for it.
func (d *Device) SetClass(cls string) error {
	_, err := cmd.Exec("hciconfig", d.hci, "class", cls)
	return err
}

func (d *Device) RegisterProfile(profilePath, uuid string, options map[string]interface{}) error {
	mgr, err := profile.NewProfileManager1()
	if nil != err {
		return err
	}
	return mgr.RegisterProfile(dbus.ObjectPath(profilePath), uuid, options)
}

func getManagedObjects() (managedObjects, error) {
	om, err := bluez.GetObjectManager()
	if nil != err {
		return nil, err
	}
	return om.GetManagedObjects()
}
