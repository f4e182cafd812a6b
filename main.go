package main

import "github.com/sadopc/attendr/cmd"

func main() {
	cmd.Execute()
}
