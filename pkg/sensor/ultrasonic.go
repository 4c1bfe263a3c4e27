package sensor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial"
)

// Default GPIO pins of the ultrasonic sensor on the echo bridge.
const (
	TrigPin = 22
	EchoPin = 23
)

// mmPerMicrosecond converts a round-trip echo time to a one-way distance
// (speed of sound 343 m/s, halved).
const mmPerMicrosecond = 0.1715

// readTimeout is the serial read timeout; a pending reply is polled at this
// interval so cancellation is noticed. replyTimeout bounds the whole reply.
const (
	readTimeout  = 50 * time.Millisecond
	replyTimeout = time.Second
)

// ErrNoEcho is returned when the bridge reports no echo within its window.
var ErrNoEcho = errors.New("no echo received")

// UltrasonicSensor is an HC-SR04 style sensor driven by a serial echo bridge. The
// bridge answers "PING <trig> <echo>" with the echo pulse width in
// microseconds, or "TIMEOUT".
type UltrasonicSensor struct {
	port    io.ReadWriteCloser
	pending []byte // received bytes not yet returned as a line
	trig    int
	echo    int
	curve   Curve
}

// OpenUltrasonic opens the bridge on a serial port at 115200 8N1.
func OpenUltrasonic(portName string, trig, echo int) (*UltrasonicSensor, error) {
	mode := &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}

	return NewUltrasonic(port, trig, echo), nil
}

// NewUltrasonic creates a sensor over an open bridge connection.
func NewUltrasonic(port io.ReadWriteCloser, trig, echo int) *UltrasonicSensor {
	return &UltrasonicSensor{
		port:  port,
		trig:  trig,
		echo:  echo,
		curve: Identity,
	}
}

// Kind returns Ultrasonic.
func (u *UltrasonicSensor) Kind() Kind { return Ultrasonic }

// UseCalibrationCurve sets the curve applied to every reading.
func (u *UltrasonicSensor) UseCalibrationCurve(slope, intercept float64) {
	u.curve = Curve{Slope: slope, Intercept: intercept}
}

// DistanceMM triggers one ping and converts the echo time to millimetres.
func (u *UltrasonicSensor) DistanceMM(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if _, err := fmt.Fprintf(u.port, "PING %d %d\n", u.trig, u.echo); err != nil {
		return 0, fmt.Errorf("write ping: %w", err)
	}

	line, err := u.readLine(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("read echo: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "TIMEOUT" {
		return 0, ErrNoEcho
	}

	us, err := strconv.ParseFloat(line, 64)
	if err != nil {
		return 0, fmt.Errorf("parse echo %q: %w", line, err)
	}

	return u.curve.Apply(us * mmPerMicrosecond), nil
}

// readLine returns the next newline-terminated reply. The serial port
// returns no data when its read timeout expires, so ctx is checked at least
// every readTimeout.
func (u *UltrasonicSensor) readLine(ctx context.Context) (string, error) {
	deadline := time.Now().Add(replyTimeout)
	buf := make([]byte, 64)
	for {
		if i := bytes.IndexByte(u.pending, '\n'); i >= 0 {
			line := string(u.pending[:i])
			u.pending = u.pending[i+1:]
			return line, nil
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if time.Now().After(deadline) {
			return "", errors.New("no reply from echo bridge")
		}

		n, err := u.port.Read(buf)
		u.pending = append(u.pending, buf[:n]...)
		if err != nil {
			return "", err
		}
	}
}

// Close closes the bridge connection.
func (u *UltrasonicSensor) Close() error {
	return u.port.Close()
}
