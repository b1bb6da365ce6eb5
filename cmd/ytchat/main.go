package main

import "ragchat/internal/cli"

func main() {
	cli.Execute(cli.YTChat)
}
