// Package main provides the CLI entrypoint for dnsconfbridge.
package main

func main() {
	Execute()
}
