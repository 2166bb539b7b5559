package main

import (
	"github.com/syndb/syndb/cmd"
)

func main() {
	cmd.Execute()
}
