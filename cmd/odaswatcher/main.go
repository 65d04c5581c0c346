package main

import "odas-monitor/internal/cli"

func main() {
	cli.Execute()
}
