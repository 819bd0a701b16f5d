package main

import "map-pin-backend/cmd"

func main() {
	cmd.Run()
}
