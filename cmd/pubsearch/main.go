// Package main provides the entry point for the pubsearch CLI.
package main

import (
	"os"

	"github.com/Adithya-Monish-Kumar-K/pubsearch/cmd/pubsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
