package main

import (
	"github.com/medlocal/assistant/internal/cli"
)

func main() {
	cli.Execute()
}
