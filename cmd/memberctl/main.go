package main

import (
	"github.com/membergate/membergate/internal/cli"
)

func main() {
	cli.Execute()
}
