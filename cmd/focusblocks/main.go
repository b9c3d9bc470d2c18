package main

import "focus-blocks/internal/cli"

func main() {
	cli.Execute()
}
