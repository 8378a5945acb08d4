// Command rowpressure estimates the refresh overhead of row-hammer mitigation
// from memory traces.
package main

import "github.com/sarchlab/rowpressure/rowpressure/cmd"

func main() {
	cmd.Execute()
}
