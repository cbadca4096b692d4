package main

import "github.com/mabhi256/xmx/cmd"

func main() {
	cmd.Execute()
}
