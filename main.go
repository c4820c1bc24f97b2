package main

import "semasync/cmd"

func main() {
	cmd.Execute()
}
