package main

import "github.com/opsdesk/server/cmd/server/cmd"

func main() {
	cmd.Execute()
}
