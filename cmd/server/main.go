package main

import (
	"os"
)

// main hands off to the cobra command tree. Wiring lives in app.go; business
// logic lives in internal packages. cobra prints the error, main only sets the
// exit status.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
