// Package sensorcal calibrates distance sensors against a moving target.
//
// A sweep steps an obstacle through a range of distances, either by hand or
// with a Meca500 arm, takes a batch of readings at every step and writes them
// to one CSV file per distance. The summary command reads a sweep back and
// fits the linear calibration curve for the sensor.
//
// # Installation
//
//	go install github.com/gwillem/sensorcal/cmd/sensorcal@latest
//
// # Usage
//
// Options are given as --key=value flags or as key=value lines in a config
// file:
//
//	sensorcal --sensor=ultrasonic --surface=wood --options="{0,170,5}"
//	sensorcal --config=rig.txt --measurements=50 --userobot
//
// Fit a curve and apply it to the next sweep:
//
//	sensorcal summary --sensor=ultrasonic --surface=wood --save=sensorcal.json
//	sensorcal --sensor=ultrasonic --calibration="{1.02, -0.4}"
//
// # Packages
//
//   - cmd/sensorcal: CLI with run, summary and ports commands
//   - pkg/options: option registry, command line and config file sources
//   - pkg/session: configuration of one calibration run
//   - pkg/sensor: ultrasonic and infrared sensors, calibration curve
//   - pkg/robot: Meca500 arm client
//   - pkg/sweep: sweep controller and measurement writer
//   - pkg/report: sweep statistics and curve fitting
package sensorcal
