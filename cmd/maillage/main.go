// Package main is the entry point of the maillage CLI.
package main

import (
	"os"
)

// version is set at build time via ldflags
var version = "dev"

func main() {
	a := &app{}
	err := newRootCmd(a).Execute()
	a.close()
	if err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
