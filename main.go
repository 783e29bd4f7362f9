package main

import (
	"os"

	"sheetsync/internal/app"
	"sheetsync/internal/cli"
)

func main() {
	app.SetupEnvironment(os.Stderr)
	os.Exit(cli.Execute())
}
