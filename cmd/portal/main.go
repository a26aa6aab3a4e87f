package main

import "go-academic-portal/cmd/portal/cmd"

func main() {
	cmd.Execute()
}
