// SPDX-License-Identifier: MPL-2.0

package main

import "github.com/lane-core/pack.ksh/internal/cli"

func main() {
	cli.Execute()
}
