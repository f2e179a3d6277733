package main

import "github.com/vietddude/toolgate/internal/cli"

func main() {
	cli.Execute()
}
