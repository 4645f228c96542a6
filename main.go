package main

import "github.com/andresmejia3/harris/cmd"

func main() {
	cmd.Execute()
}
