/*
Copyright © 2022 Morgan Gangwere <morgan.gangwere@gmail.com>
*/
package main

import (
	"os"

	"github.com/indrora/tusk/cmd/pntool/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
