package main

import (
	"os"

	"mindmate/cmd/mindmate/cmd"
)

func main() {
	os.Exit(cmd.Execute(os.Args[1:], os.Stdout, os.Stderr, &cmd.Config{}))
}
