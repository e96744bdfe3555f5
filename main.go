package main

import "coldfront-rental-sync/cmd"

func main() {
	cmd.Execute()
}
