package port_reader

import (
	"errors"
	"fmt"
	"time"

	"github.com/NotCoffee418/ut61e_logger/pkg/protocol"
	"github.com/sirupsen/logrus"
	hid "github.com/sstallion/go-hid"
)

const cp2110ProductID = 0xEA80

// CP2110 feature reports: enable the UART, set 9600 8N1, purge both FIFOs.
var cp2110Setup = [][]byte{
	{0x41, 0x01},
	{0x50, 0x00, 0x00, 0x25, 0x80, 0x00, 0x00, 0x03, 0x00},
	{0x43, 0x02},
}

type hidDevice struct {
	dev *hid.Device
}

// OpenHID opens the first connected meter bridge from protocol.KnownDevices.
func OpenHID() (Device, protocol.DeviceID, error) {
	if err := hid.Init(); err != nil {
		return nil, protocol.DeviceID{}, fmt.Errorf("failed to initialize hidapi: %w", err)
	}

	for _, id := range protocol.KnownDevices {
		dev, err := hid.OpenFirst(id.VendorID, id.ProductID)
		if err != nil {
			continue
		}
		if id.ProductID == cp2110ProductID {
			if err := configureCP2110(dev); err != nil {
				dev.Close()
				hid.Exit()
				return nil, id, fmt.Errorf("failed to configure %s: %w", id.Name, err)
			}
		}
		logrus.WithFields(logrus.Fields{
			"bridge":  id.Name,
			"vendor":  fmt.Sprintf("%04x", id.VendorID),
			"product": fmt.Sprintf("%04x", id.ProductID),
		}).Info("Opened meter")
		return &hidDevice{dev: dev}, id, nil
	}

	hid.Exit()
	return nil, protocol.DeviceID{}, ErrNoDevice
}

func configureCP2110(dev *hid.Device) error {
	for _, report := range cp2110Setup {
		if _, err := dev.SendFeatureReport(report); err != nil {
			return err
		}
	}
	return nil
}

func (d *hidDevice) ReadTimeout(p []byte, timeout time.Duration) (int, error) {
	n, err := d.dev.ReadWithTimeout(p, timeout)
	if errors.Is(err, hid.ErrTimeout) {
		return 0, nil
	}
	return n, err
}

func (d *hidDevice) Write(p []byte) (int, error) {
	return d.dev.Write(p)
}

func (d *hidDevice) Close() error {
	return errors.Join(d.dev.Close(), hid.Exit())
}
