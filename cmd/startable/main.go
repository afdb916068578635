package main

import (
	"os"

	"github.com/JonMunkholm/startable/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
