package main

import "trendwatch/internal/cli"

func main() {
	cli.Execute()
}
