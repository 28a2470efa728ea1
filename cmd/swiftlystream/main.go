package main

import "github.com/ibmjstart/swiftlystream/internal/cli"

func main() {
	cli.Main()
}
