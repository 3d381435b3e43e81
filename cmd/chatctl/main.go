package main

import "github.com/matheus3301/jewelchat/cmd/chatctl/cmd"

func main() {
	cmd.Execute()
}
