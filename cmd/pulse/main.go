package main

import "github.com/comedypulse/pulse-agent/internal/cli"

func main() {
	cli.Execute()
}
