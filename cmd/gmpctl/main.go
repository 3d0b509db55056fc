package main

import (
	"os"

	"gmpportal/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
