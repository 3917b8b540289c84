package main

import "github.com/dnitsch/lambda-url-auth/cmd"

func main() {
	cmd.Execute()
}
