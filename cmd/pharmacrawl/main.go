// Package main provides the entry point for the pharmacrawl CLI.
//
// pharmacrawl discovers pharmacy store pages with one workflow, extracts a
// structured record from each page with a second workflow, and writes all
// records as one JSON array.
//
// Usage:
//
//	pharmacrawl crawl
//	pharmacrawl crawl -D discovery.yaml -X scraper.yaml -o pharmacies.json
//
// See --help for all available options.
package main

func main() {
	Execute()
}
