package main

import (
	"fmt"
	"os"
)

var chatApp app

func main() {
	chatApp.loadApp()
	if err := chatApp.cli.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
