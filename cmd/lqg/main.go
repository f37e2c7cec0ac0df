package main

import "github.com/ogulcanaydogan/LLM-Quota-Guardian/internal/cli"

func main() {
	cli.Execute()
}
