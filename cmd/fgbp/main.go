package main

import (
	"os"

	"github.com/happyhackingspace/fgbp/internal/cli"
)

// Set at build time with -ldflags "-X main.version=... -X main.repo=...".
var (
	version = "dev"
	repo    = ""
)

func main() {
	if err := cli.New(version, cli.WithRepo(repo)).Run(); err != nil {
		os.Exit(1)
	}
}
