package main

import (
	"os"

	"github.com/GoWebProd/obsidian-jira-master/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
