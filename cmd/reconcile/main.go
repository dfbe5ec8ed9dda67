package main

import "restopay/internal/cli"

func main() {
	cli.Execute()
}
