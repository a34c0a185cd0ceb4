package main

import "github.com/oshokin/bundle-exporter/cmd/bundle-exporter/cmd"

func main() {
	cmd.Execute()
}
