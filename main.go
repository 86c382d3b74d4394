package main

import "github.com/ortizpassos/trustpay/cmd"

func main() {
	cmd.Execute()
}
