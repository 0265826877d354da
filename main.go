package main

import (
	"os"

	"exiliumcore/cli"
)

func main() {
	os.Exit(cli.Execute())
}
