package main

import (
	"os"

	"github.com/FACorreiaa/rocketstart-api/cmd/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
