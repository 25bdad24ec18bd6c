package main

import "postcode-api/internal/cli"

func main() {
	cli.Execute()
}
