package main

import (
	"log"
	"os"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
