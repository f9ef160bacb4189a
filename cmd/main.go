// Command xscaffold generates correlation-preserving synthetic student
// profiles, scores learning records, and serves the scoring API.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
