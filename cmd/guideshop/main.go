package main

import (
	"fmt"
	"os"

	"github.com/m3rciful/guideshop/cmd/guideshop/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
