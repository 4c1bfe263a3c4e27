package robot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// Arm is the motion capability the sweep needs from a robot.
type Arm interface {
	ResetError(ctx context.Context) error
	SetConf(ctx context.Context, c1, c2, c3 int) error
	MovePose(ctx context.Context, p Pose) error
	Close() error
}

// ErrOutOfLimits is returned for poses outside the configured motion limits.
var ErrOutOfLimits = errors.New("pose out of limits")

// Response codes used by the client.
const (
	codeActivated        = 2000
	codeAlreadyActivated = 2001
	codeHomed            = 2002
	codeAlreadyHomed     = 2003
	codeErrorReset       = 2005
	codeNoErrorToReset   = 2006
	codeConnected        = 3000
	codeCheckpoint       = 3030
)

// CommandError is an error reported by the controller.
type CommandError struct {
	Code    int
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("robot error %d: %s", e.Code, e.Message)
}

// Meca500 is a client for the Meca500 text control protocol. Commands and
// responses are ASCII terminated by NUL; responses have the form [code][text].
type Meca500 struct {
	rw         io.ReadWriteCloser
	reader     *bufio.Reader
	settings   Settings
	checkpoint int
}

// Dial connects to the arm controller and prepares it for motion.
func Dial(ctx context.Context, s Settings) (*Meca500, error) {
	dialer := net.Dialer{Timeout: s.Timeout}
	if s.Interface != "" {
		ip, err := interfaceIP(s.Interface)
		if err != nil {
			return nil, err
		}
		dialer.LocalAddr = &net.TCPAddr{IP: ip}
	}

	conn, err := dialer.DialContext(ctx, "tcp", s.Address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.Address, err)
	}

	m, err := NewMeca500(ctx, conn, s)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return m, nil
}

// NewMeca500 runs the connection handshake over rw: it waits for the
// controller greeting, activates and homes the arm, then applies speed and
// tool frame from the settings.
func NewMeca500(ctx context.Context, rw io.ReadWriteCloser, s Settings) (*Meca500, error) {
	m := &Meca500{
		rw:       rw,
		reader:   bufio.NewReader(rw),
		settings: s,
	}

	if _, err := m.await(ctx, codeConnected); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if _, err := m.call(ctx, "ActivateRobot", codeActivated, codeAlreadyActivated); err != nil {
		return nil, fmt.Errorf("activate: %w", err)
	}
	if err := m.send(ctx, "Home"); err != nil {
		return nil, fmt.Errorf("home: %w", err)
	}
	if _, err := m.awaitWithin(ctx, s.MotionTimeout, codeHomed, codeAlreadyHomed); err != nil {
		return nil, fmt.Errorf("home: %w", err)
	}
	if err := m.send(ctx, fmt.Sprintf("SetJointVel(%s)", formatArgs(s.Speed))); err != nil {
		return nil, fmt.Errorf("set speed: %w", err)
	}
	if err := m.send(ctx, fmt.Sprintf("SetTRF(%s)", formatArgs(0, 0, s.ToolOffset, 0, 0, 0))); err != nil {
		return nil, fmt.Errorf("set tool frame: %w", err)
	}

	return m, nil
}

// Close closes the controller connection.
func (m *Meca500) Close() error {
	return m.rw.Close()
}

// ResetError clears the controller's error state.
func (m *Meca500) ResetError(ctx context.Context) error {
	if _, err := m.call(ctx, "ResetError", codeErrorReset, codeNoErrorToReset); err != nil {
		return fmt.Errorf("reset error: %w", err)
	}
	return nil
}

// SetConf sets the shoulder, elbow and wrist configuration parameters.
func (m *Meca500) SetConf(ctx context.Context, c1, c2, c3 int) error {
	cmd := fmt.Sprintf("SetConf(%d,%d,%d)", c1, c2, c3)
	if err := m.send(ctx, cmd); err != nil {
		return fmt.Errorf("set conf: %w", err)
	}
	return nil
}

// MovePose moves the arm to p and blocks until the motion has completed.
func (m *Meca500) MovePose(ctx context.Context, p Pose) error {
	if !m.settings.InLimits(p) {
		return fmt.Errorf("move to %s: %w (x must be within [%g, %g])",
			p, ErrOutOfLimits, m.settings.LimitMin, m.settings.LimitMax)
	}

	if err := m.send(ctx, fmt.Sprintf("MovePose(%s)", formatArgs(p.Values()...))); err != nil {
		return fmt.Errorf("move pose: %w", err)
	}

	// The checkpoint is reported once every queued motion before it is done
	m.checkpoint++
	id := strconv.Itoa(m.checkpoint)
	if err := m.send(ctx, "SetCheckpoint("+id+")"); err != nil {
		return fmt.Errorf("set checkpoint: %w", err)
	}
	for {
		resp, err := m.awaitWithin(ctx, m.settings.MotionTimeout, codeCheckpoint)
		if err != nil {
			return fmt.Errorf("move pose: %w", err)
		}
		if resp.Text == id {
			return nil
		}
	}
}

type response struct {
	Code int
	Text string
}

func (m *Meca500) call(ctx context.Context, cmd string, want ...int) (response, error) {
	if err := m.send(ctx, cmd); err != nil {
		return response{}, err
	}
	return m.await(ctx, want...)
}

func (m *Meca500) send(ctx context.Context, cmd string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.setDeadline(ctx, m.settings.Timeout)
	_, err := io.WriteString(m.rw, cmd+"\x00")
	return err
}

// await reads responses until one carries a wanted code. Error codes end
// the wait; other status messages are skipped.
func (m *Meca500) await(ctx context.Context, want ...int) (response, error) {
	return m.awaitWithin(ctx, m.settings.Timeout, want...)
}

// awaitWithin is await with its own per-response timeout. Motion can take
// much longer than a command acknowledgement.
func (m *Meca500) awaitWithin(ctx context.Context, timeout time.Duration, want ...int) (response, error) {
	if conn, ok := m.rw.(deadliner); ok {
		// Unblock a pending read when ctx is cancelled.
		stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Now()) })
		defer stop()
	}

	for {
		m.setDeadline(ctx, timeout)
		if err := ctx.Err(); err != nil {
			return response{}, err
		}

		raw, err := m.reader.ReadString(0)
		if err != nil {
			if ctx.Err() != nil {
				return response{}, ctx.Err()
			}
			return response{}, fmt.Errorf("read response: %w", err)
		}
		raw = strings.TrimSpace(strings.TrimSuffix(raw, "\x00"))
		if raw == "" {
			continue
		}

		resp, err := parseResponse(raw)
		if err != nil {
			return response{}, err
		}
		if resp.Code >= 1000 && resp.Code < 2000 {
			return response{}, &CommandError{Code: resp.Code, Message: resp.Text}
		}
		for _, code := range want {
			if resp.Code == code {
				return resp, nil
			}
		}
	}
}

type deadliner interface {
	SetDeadline(time.Time) error
}

// setDeadline bounds the next read or write by timeout and the ctx
// deadline, whichever comes first. Zero timeout leaves only ctx.
func (m *Meca500) setDeadline(ctx context.Context, timeout time.Duration) {
	conn, ok := m.rw.(deadliner)
	if !ok {
		return
	}
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	conn.SetDeadline(deadline)
}

func parseResponse(raw string) (response, error) {
	// [2005][The error was reset.]
	if !strings.HasPrefix(raw, "[") {
		return response{}, fmt.Errorf("malformed response %q", raw)
	}
	end := strings.Index(raw, "]")
	if end < 0 {
		return response{}, fmt.Errorf("malformed response %q", raw)
	}
	code, err := strconv.Atoi(raw[1:end])
	if err != nil {
		return response{}, fmt.Errorf("malformed response code %q: %w", raw, err)
	}
	text := strings.TrimSuffix(strings.TrimPrefix(raw[end+1:], "["), "]")
	return response{Code: code, Text: text}, nil
}

func formatArgs(v ...float64) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

func interfaceIP(name string) (net.IP, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("interface %s: %w", name, err)
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return nil, fmt.Errorf("interface %s addresses: %w", name, err)
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.To4() != nil {
			return ipnet.IP, nil
		}
	}
	return nil, fmt.Errorf("interface %s has no IPv4 address", name)
}
