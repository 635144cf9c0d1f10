package main

import (
	"log"

	"github.com/lmichel/tonectl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
