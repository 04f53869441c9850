package main

import "budgetwatch/internal/cli"

func main() {
	cli.Execute()
}
