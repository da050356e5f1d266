package main

import "github.com/frahmantamala/kitchen-ops/cmd"

func main() {
	cmd.Execute()
}
