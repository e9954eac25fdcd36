package main

import "readthis-backend/cmd"

func main() {
	cmd.Run()
}
