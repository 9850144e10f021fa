package main

import (
	"os"

	"github.com/chatchai-k/docqa/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
