package main

import "github.com/sadopc/prodhub/internal/cli"

func main() {
	cli.Execute()
}
