package main

import (
	"github.com/eleven-am/dicton/internal/bootstrap"
)

func main() {
	bootstrap.Run()
}
