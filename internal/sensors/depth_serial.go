// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/eye_wall/internal/frame"
)

// The depth coprocessor (Kinect adapter) emits one NMEA-framed sentence per
// frame over serial:
//
//	$PEWD,<x>,<y>,<depth_mm>,<A|V>*hh
//
// x,y are the pixel coordinates of the nearest object, depth_mm its distance.
// Validity "V" means no object was inside the detection window this frame.
const sentencePEWD = "EWD"

// PEWD is the parsed proprietary depth sentence.
type PEWD struct {
	nmea.BaseSentence
	X       int64
	Y       int64
	DepthMM int64
	Valid   bool
}

func init() {
	nmea.MustRegisterParser(sentencePEWD, func(s nmea.BaseSentence) (nmea.Sentence, error) {
		p := nmea.NewParser(s)
		return PEWD{
			BaseSentence: s,
			X:            p.Int64(0, "x"),
			Y:            p.Int64(1, "y"),
			DepthMM:      p.Int64(2, "depth_mm"),
			Valid:        p.String(3, "validity") == "A",
		}, p.Err()
	})
}

// DepthWindow is the valid target distance range in millimeters. Targets
// outside it are reported as invalid frames, matching the wall's detection
// envelope rather than the sensor's full range.
type DepthWindow struct {
	MinMM int
	MaxMM int
}

// SerialDepthReader reads depth frames from the coprocessor's serial link.
type SerialDepthReader struct {
	r      *bufio.Reader
	closer io.Closer
	window DepthWindow
	now    func() time.Time
}

// OpenSerialDepthReader opens the serial port the depth unit is attached to.
func OpenSerialDepthReader(portName string, baudRate int, window DepthWindow) (*SerialDepthReader, error) {
	port, err := serial.Open(serial.OpenOptions{
		PortName:        portName,
		BaudRate:        uint(baudRate),
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	})
	if err != nil {
		return nil, fmt.Errorf("open depth serial port %s: %w", portName, err)
	}
	return NewSerialDepthReader(port, window), nil
}

// NewSerialDepthReader wraps an already open stream; split out so tests can
// feed canned sentences.
func NewSerialDepthReader(rc io.ReadCloser, window DepthWindow) *SerialDepthReader {
	return &SerialDepthReader{
		r:      bufio.NewReader(rc),
		closer: rc,
		window: window,
		now:    time.Now,
	}
}

// ReadFrame blocks until the next complete depth sentence and returns it as a
// Frame. Lines that are not valid PEWD sentences are skipped (noisy links,
// partial sentences after open).
func (s *SerialDepthReader) ReadFrame() (frame.Frame, error) {
	for {
		line, err := s.r.ReadString('\n')
		if err != nil {
			return frame.Frame{}, fmt.Errorf("depth serial read: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			// Checksum failures and garbled lines; just wait for the next one.
			continue
		}
		d, ok := sentence.(PEWD)
		if !ok {
			continue
		}

		f := frame.Frame{
			Target: frame.Point{X: int(d.X), Y: int(d.Y), DepthMM: int(d.DepthMM)},
			Valid:  d.Valid,
			Time:   s.now(),
		}
		if f.Valid && !s.inWindow(f.Target.DepthMM) {
			f.Valid = false
		}
		return f, nil
	}
}

func (s *SerialDepthReader) inWindow(depthMM int) bool {
	if s.window.MinMM == 0 && s.window.MaxMM == 0 {
		return true
	}
	return depthMM >= s.window.MinMM && depthMM <= s.window.MaxMM
}

// Close releases the serial port.
func (s *SerialDepthReader) Close() error {
	return s.closer.Close()
}
