package main

import "github.com/Mohsinsiddi/w3scan/cmd"

func main() {
	cmd.Execute()
}
