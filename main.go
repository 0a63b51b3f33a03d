// Command cyro surfaces rare, high-signal lines from log streams using an
// online information model.
package main

import (
	"os"

	"github.com/bimmerbailey/cyro/cmd"
)

func main() {
	if cmd.Execute() != nil {
		os.Exit(1)
	}
}
