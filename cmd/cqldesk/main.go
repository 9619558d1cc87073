// Package main provides the cqldesk terminal client.
package main

import (
	"os"

	"github.com/cqldesk/cqldesk/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
