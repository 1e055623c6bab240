package main

import "github.com/ValentinKolb/dTube/cmd"

func main() {
	cmd.Execute()
}
