package main

import "github.com/KaramelBytes/datasift-cli/cmd"

func main() {
	cmd.Execute()
}
