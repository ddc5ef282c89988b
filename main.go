package main

import "github.com/shouni/go-scholarship-scan/cmd"

func main() {
	cmd.Execute()
}
