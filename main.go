package main

import (
	"os"

	"grimm.is/denatd/cmd"
)

func main() {
	os.Exit(cmd.Run(os.Args[1:]))
}
