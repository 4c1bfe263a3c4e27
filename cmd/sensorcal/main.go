package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/gwillem/sensorcal/pkg/session"
)

type Options struct {
	Run     RunCommand     `command:"run" description:"Run a calibration sweep (default when no command is given)"`
	Summary SummaryCommand `command:"summary" alias:"report" description:"Summarise a recorded sweep and fit a calibration curve"`
	Ports   PortsCommand   `command:"ports" description:"List serial ports for the ultrasonic echo bridge"`
}

var opts Options

var parser = newParser(&opts)

// Sweep options use the --key=value syntax of config files and are passed
// through to the option registry untouched.
func newParser(o *Options) *flags.Parser {
	p := flags.NewParser(o, flags.HelpFlag|flags.PassDoubleDash|flags.IgnoreUnknown)
	p.Name = "sensorcal"
	p.LongDescription = "Distance sensor calibration. Sweeps a target through a range of distances and records the sensor readings."
	p.SubcommandsOptional = true
	return p
}

func main() {
	args, sweep, err := parseCommandLine(parser, os.Args[1:])
	if sweep {
		err = runSweep(args)
	}

	var ferr *flags.Error
	if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
		fmt.Println(ferr.Message)
		return
	}
	if err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// parseCommandLine parses argv and reports whether the sweep still has to
// run with the returned args. Subcommands other than run are executed by the
// parser. The sweep options are documented by the option registry, so a
// --help without a subcommand is handed to the sweep as well.
func parseCommandLine(p *flags.Parser, argv []string) ([]string, bool, error) {
	args, err := p.ParseArgs(argv)

	var ferr *flags.Error
	if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
		if p.Active == nil || p.Active.Name == "run" {
			return argv, true, nil
		}
		return nil, false, err
	}
	return args, err == nil && p.Active == nil, err
}

func printError(w io.Writer, err error) {
	if errors.Is(err, session.ErrSensorNotSet) {
		fmt.Fprintln(w, errorStyle.Render("Sensor type not set."))
		fmt.Fprintln(w, "Use --sensor=[infrared, ultrasonic]")
		fmt.Fprintln(w, dimStyle.Render("Program will now exit..."))
		return
	}
	fmt.Fprintln(w, errorStyle.Render("Error: "+err.Error()))
	fmt.Fprintln(w, dimStyle.Render("Program will now exit..."))
}
