package main

import (
	"os"

	"github.com/tyreaid/roadaid/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
