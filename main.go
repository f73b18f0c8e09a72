package main

import "hubstage/cmd"

func main() {
	cmd.Execute()
}
