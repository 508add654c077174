package main

import "edulearn-connect/internal/app"

func main() {
	app.Run()
}
