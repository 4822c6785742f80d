package main

import (
	"os"

	"github.com/etnz/debstream/cmd/debtool/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
