package main

import (
	"os"

	"github.com/reachscan/cmd/reachscan/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
