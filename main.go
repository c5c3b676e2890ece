package main

import (
	"os"

	"github.com/recodex/sis-binding/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
