package main

import "github.com/planconv/planconv/cmd"

func main() {
	cmd.Execute()
}
