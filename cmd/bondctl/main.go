// Command bondctl drives a bond market server from the command line. It
// signs transactions locally with a keypair file and submits them over HTTP.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
