package main

import (
	"os"

	"asmsplit/internal/cli"
)

func main() {
	os.Exit(cli.ExitCode(cli.Execute()))
}
