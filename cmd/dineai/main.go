package main

import "github.com/darshil0/DineAI/internal/cli"

func main() {
	cli.Execute()
}
