package main

import "github.com/mselser95/dexsim/cmd"

func main() {
	cmd.Execute()
}
