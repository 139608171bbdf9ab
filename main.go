package main

import (
	"github.com/portalmesh/relmeta/cmd"
	"github.com/portalmesh/relmeta/pkg/logger"
)

var version = "1.0.0"

func main() {
	if err := cmd.Execute(version); err != nil {
		logger.Fatalf("Error: %v", err)
	}
}
