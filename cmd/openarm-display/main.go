// Package main is the openarm-display command itself.
package main

import (
	"log"
	"os"

	"github.com/openarm/display/cli"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
