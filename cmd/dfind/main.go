package main

import (
	"context"
	"os"

	"github.com/ZanzyTHEbar/dupe-finder/dfind/cli"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
