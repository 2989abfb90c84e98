// Package main provides the scrapedeck CLI.
//
// Usage:
//
//	scrapedeck serve
//	scrapedeck run --config board.json
//	scrapedeck watch --config board.json --every 5m
//
// See --help for all available options.
package main

func main() {
	Execute()
}
