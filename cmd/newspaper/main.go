package main

import (
	"os"

	"github.com/isaiahnixon/newspaper/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
