package main

import "github.com/MeKo-Tech/rasterfilter/internal/cmd"

func main() {
	cmd.Execute()
}
