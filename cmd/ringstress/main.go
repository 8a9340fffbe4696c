// Command ringstress runs a producer/consumer transfer through a circular
// buffer and reports throughput.
//
// Usage:
//
//	ringstress [--config stress.yaml] [--capacity 4KiB] [--chunk 32] [--read 64] [--total 1MiB] [-v]
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
