package main

import (
	"context"
	"os"

	"github.com/jo-hoe/gofilter/internal/cli"
)

func main() {
	os.Exit(cli.Run(context.Background(), os.Args[1:]))
}
