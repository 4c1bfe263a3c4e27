package robot

import "time"

// DefaultAddress is the Meca500 control port on its factory IP address.
const DefaultAddress = "192.168.0.100:10000"

// Settings holds the connection and motion limits for the arm.
type Settings struct {
	Address   string // controller address, host:port
	Interface string // local network interface the connection is bound to

	// LimitMin and LimitMax bound the X coordinate of every commanded pose.
	LimitMin float64
	LimitMax float64

	Timeout       time.Duration // per-response timeout for command acknowledgements
	MotionTimeout time.Duration // wait for homing or a move to finish
	ToolOffset    float64       // tool reference frame offset along Z, mm
	Speed         float64       // joint velocity, percent of maximum
}

// DefaultSettings returns the settings of the calibration rig.
func DefaultSettings() Settings {
	return Settings{
		Address:       DefaultAddress,
		Interface:     "eth0",
		LimitMin:      -30,
		LimitMax:      230,
		Timeout:       5000 * time.Millisecond,
		MotionTimeout: 2 * time.Minute,
		ToolOffset:    0,
		Speed:         10,
	}
}

// InLimits reports whether the pose's X coordinate is within the motion limits.
func (s Settings) InLimits(p Pose) bool {
	return p.X >= s.LimitMin && p.X <= s.LimitMax
}
