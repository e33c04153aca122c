package main

import (
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"

	"github.com/blockhaven/ticketd/internal/auth"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gen_bridge_key <key>")
		os.Exit(1)
	}
	hash, err := auth.HashBridgeKey(os.Args[1], bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	fmt.Println(hash)
}
