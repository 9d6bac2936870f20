package main

import (
	"os"

	"github.com/foundationallm/foundationallm-sub000/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:], os.Stdout, os.Stderr))
}
