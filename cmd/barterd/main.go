package main

import "github.com/barterlabs/goBarterd/internal/cli"

func main() {
	cli.Execute()
}
