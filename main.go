package main

import "github.com/kebairia/snapback/cmd"

func main() {
	cmd.Execute()
}
