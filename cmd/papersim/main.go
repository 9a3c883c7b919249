// Command papersim simulates order execution against paper portfolios.
package main

import (
	"fmt"
	"os"

	"paper-trader/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
