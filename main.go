package main

import (
	"os"

	"github.com/bincrafters/envy/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
