package main

import "github.com/klytics/irkit/cmd"

func main() {
	cmd.Execute()
}
