package main

import "github.com/chefshef/courtsched/cmd"

func main() {
	cmd.Execute()
}
