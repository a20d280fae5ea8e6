package main

import (
	"os"

	_ "go.uber.org/automaxprocs"

	"github.com/custodia-labs/threadline/internal/adapters/driving/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
