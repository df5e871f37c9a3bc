package main

import (
	"github.com/omniscale/linesplit/cmd"
)

func main() {
	cmd.Main()
}
