package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/gwillem/sensorcal/pkg/sensor"
)

type PortsCommand struct {
	Probe bool `long:"probe" description:"Ping each port to find the ultrasonic echo bridge"`
}

const probeTimeout = 2 * time.Second

func (c *PortsCommand) Execute(args []string) error {
	ports, err := serial.GetPortsList()
	if err != nil {
		return fmt.Errorf("list serial ports: %w", err)
	}

	var candidates []string
	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}
		candidates = append(candidates, port)
	}

	if len(candidates) == 0 {
		fmt.Println("No serial ports found.")
		fmt.Println("Make sure the echo bridge is connected.")
		return nil
	}

	for _, port := range candidates {
		if !c.Probe {
			fmt.Printf("  %s\n", port)
			continue
		}
		if d, err := probeBridge(port); err != nil {
			fmt.Printf("  %s %s\n", port, dimStyle.Render(err.Error()))
		} else {
			fmt.Printf("  %s %s\n", port, successStyle.Render(fmt.Sprintf("echo bridge, %.1f mm", d)))
		}
	}

	fmt.Println()
	fmt.Println("Select a port with: " + headerStyle.Render(parser.Name+" --port=DEVICE"))
	return nil
}

func probeBridge(port string) (float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	s, err := sensor.OpenUltrasonic(port, sensor.TrigPin, sensor.EchoPin)
	if err != nil {
		return 0, err
	}
	defer s.Close()

	return s.DistanceMM(ctx)
}
