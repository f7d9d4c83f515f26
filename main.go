// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/tcpcore/tcpcore/cmd/tcpcore"

func main() {
	cmd.Execute()
}
