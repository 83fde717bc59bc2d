package main

import "github.com/klytics/smartsheet/cmd"

func main() {
	cmd.Execute()
}
