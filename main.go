package main

import "wio/cmd"

func main() {
	cmd.Execute()
}
