package main

import (
	"os"

	"github.com/armadaproject/couponseed/cmd/couponseed/cmd"
	"github.com/armadaproject/couponseed/internal/common/logging"
)

// Config is handled by cmd/params.go
func main() {
	logging.ConfigureCommandLineLogging()
	err := cmd.RootCmd().Execute()
	if err != nil {
		os.Exit(1)
	}
}
