// Package robot provides the arm used to move the calibration target.
package robot

import (
	"fmt"
	"strconv"
	"strings"
)

// Axis identifies one coordinate of an end-effector pose.
type Axis string

// Pose axes, in the order the controller expects them.
const (
	X     Axis = "x"
	Y     Axis = "y"
	Z     Axis = "z"
	Yaw   Axis = "yaw"
	Pitch Axis = "pitch"
	Roll  Axis = "roll"
)

// AllAxes returns all axes in command order.
func AllAxes() []Axis {
	return []Axis{
		X,
		Y,
		Z,
		Yaw,
		Pitch,
		Roll,
	}
}

// Pose is an end-effector pose. Positions are in millimetres, angles in degrees.
type Pose struct {
	X, Y, Z          float64
	Yaw, Pitch, Roll float64
}

// DefaultPose is the starting pose used when none is configured.
var DefaultPose = Pose{X: 200, Y: -170, Z: 120, Yaw: 90, Pitch: 90, Roll: 0}

// PoseFromValues builds a pose from the first six values.
func PoseFromValues(v []float64) (Pose, error) {
	if len(v) < len(AllAxes()) {
		return Pose{}, fmt.Errorf("pose needs %d values, got %d", len(AllAxes()), len(v))
	}
	return Pose{X: v[0], Y: v[1], Z: v[2], Yaw: v[3], Pitch: v[4], Roll: v[5]}, nil
}

// Values returns the coordinates in AllAxes order.
func (p Pose) Values() []float64 {
	return []float64{p.X, p.Y, p.Z, p.Yaw, p.Pitch, p.Roll}
}

// String formats the pose as a brace-delimited vector, e.g. {200, -170, 120, 90, 90, 0}.
func (p Pose) String() string {
	parts := make([]string, 0, 6)
	for _, v := range p.Values() {
		parts = append(parts, strconv.FormatFloat(v, 'g', -1, 64))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
