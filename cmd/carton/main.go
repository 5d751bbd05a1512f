// Command carton provides a CLI for packing and unpacking file archives.
package main

import (
	"os"

	"github.com/meigma/carton/cmd/carton/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
