package main

import "github.com/propsync/propsync/internal/cli"

func main() {
	cli.Execute()
}
