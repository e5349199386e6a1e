// Package main is the entry point for the rewards-hub binary.
package main

import "github.com/quizhub/rewards-hub/internal/cli"

func main() {
	cli.Execute()
}
