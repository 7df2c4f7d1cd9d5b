package main

import (
	"os"

	"github.com/schmitthub/setup-servers/internal/setupservers"
)

func main() {
	os.Exit(setupservers.Main())
}
