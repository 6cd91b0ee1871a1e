// Package main provides the crudgrid CLI.
package main

import "github.com/mesh-intelligence/crudgrid/internal/cli"

func main() {
	cli.Execute()
}
