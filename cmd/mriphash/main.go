// Command mriphash prints the perceptual hash of an MRI image after
// stretching it to 256x256.
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 when verify found no match and 1 for every other failure.
func exitCode(err error) int {
	if errors.Is(err, errNoMatch) {
		return 2
	}
	return 1
}
