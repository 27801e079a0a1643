package main

import "airsync/cmd"

func main() {
	cmd.Execute()
}
