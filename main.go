package main

import "trip-share-backend/cmd"

func main() {
	cmd.Run()
}
