package main

import (
	"os"

	"github.com/colebryant/upd-ping-client/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
