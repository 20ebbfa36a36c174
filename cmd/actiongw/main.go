package main

import (
	"fmt"
	"os"

	"github.com/soyeahso/actiongw/internal/cli"
	"github.com/tillberg/autorestart"
)

func main() {
	go autorestart.RestartOnChange()

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "actiongw:", err)
		os.Exit(1)
	}
}
