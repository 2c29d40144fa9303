package main

import "github.com/obscura-markets/darkpool/pkg/cli"

func main() {
	cli.Execute()
}
