package main

import "entity-persister/cmd"

func main() {
	cmd.Execute()
}
