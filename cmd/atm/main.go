package main

import "github.com/suivoice/atm/internal/cli"

func main() {
	cli.Execute()
}
