package main

import (
	"context"
	"os"

	"linecam/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background()))
}
