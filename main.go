// Copyright © 2016 Zellyn Hunter <zellyn@gmail.com>

package main

import (
	"github.com/bbcmicro/dfstool/cmd"
)

func main() {
	cmd.Execute()
}
