package main

import "github.com/varshithreddy7/syntra-ai-agentic-assistant/cmd"

func main() {
	cmd.Execute()
}
