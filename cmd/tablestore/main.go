// Command tablestore manages and serves typed tabular data.
package main

import "github.com/mesh-intelligence/tablestore/internal/cli"

func main() {
	cli.Execute()
}
