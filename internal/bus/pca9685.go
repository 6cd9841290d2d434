// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bus

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/pca9685"
	"periph.io/x/host/v3"
)

// PCA9685Array drives a row of PCA9685 boards multiplexed on one I2C bus
// (addresses 0x40.. selected by solder jumpers). Boards that fail to
// initialize are logged and skipped so a partially wired wall still runs;
// only a fully dead bus is fatal.
type PCA9685Array struct {
	bus    i2c.BusCloser
	addrs  []uint16
	boards []*pca9685.Dev // nil where init failed
}

// NewPCA9685Array opens the I2C bus and probes every configured board
// address. busName "" selects the platform default bus.
func NewPCA9685Array(busName string, addrs []uint16) (*PCA9685Array, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	b, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open I2C bus %q: %w", busName, err)
	}

	a := &PCA9685Array{bus: b, addrs: addrs, boards: make([]*pca9685.Dev, len(addrs))}
	healthy := 0
	for i, addr := range addrs {
		dev, err := pca9685.NewI2C(b, addr)
		if err != nil {
			log.Printf("WARNING: board %d at 0x%02X not responding, skipping: %v", i, addr, err)
			continue
		}
		a.boards[i] = dev
		healthy++
		log.Printf("board %d initialized at 0x%02X", i, addr)
	}
	if healthy == 0 {
		b.Close()
		return nil, fmt.Errorf("%w: no PCA9685 boards found on bus %q", ErrBusCommunication, busName)
	}
	return a, nil
}

// Boards returns the number of configured board slots, including dead ones.
func (a *PCA9685Array) Boards() int { return len(a.boards) }

// SetRefreshRate programs the PWM frequency on every healthy board.
func (a *PCA9685Array) SetRefreshRate(hz int) error {
	for i, dev := range a.boards {
		if dev == nil {
			continue
		}
		if err := dev.SetPwmFreq(physic.Frequency(hz) * physic.Hertz); err != nil {
			return fmt.Errorf("%w: board %d set %d Hz: %v", ErrBusCommunication, i, hz, err)
		}
	}
	return nil
}

// SetCommand writes one channel's pulse ticks.
func (a *PCA9685Array) SetCommand(board, channel, on, off int) error {
	if err := checkRange(channel, on, off); err != nil {
		return err
	}
	if board < 0 || board >= len(a.boards) || a.boards[board] == nil {
		return fmt.Errorf("%w: board %d unavailable", ErrBusCommunication, board)
	}
	if err := a.boards[board].SetPwm(channel, gpio.Duty(on), gpio.Duty(off)); err != nil {
		return fmt.Errorf("%w: board %d channel %d: %v", ErrBusCommunication, board, channel, err)
	}
	return nil
}

// Close releases the I2C bus.
func (a *PCA9685Array) Close() error {
	return a.bus.Close()
}
