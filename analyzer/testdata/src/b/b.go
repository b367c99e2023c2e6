package main

import (
	"log"
	"os"
)

func main() {
	name := os.Getenv("NAME")
	log.Printf("hello %s", name)
}
