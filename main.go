package main

import "github.com/vibast-solutions/ms-go-paypal/cmd"

func main() {
	cmd.Execute()
}
