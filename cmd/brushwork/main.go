// Package main is the single-binary entrypoint for Brushwork, a batch
// image generation daemon backed by the Gemini API.
package main

import "github.com/brushwork-ai/brushwork/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
