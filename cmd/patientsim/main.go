// Command patientsim runs the standardized patient interview simulator
package main

import (
	"fmt"
	"os"

	"github.com/ppiankov/patientsim/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cli.Version = version
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
