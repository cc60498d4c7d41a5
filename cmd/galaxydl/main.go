// Command galaxydl is a command-line downloader for a GOG Galaxy
// library: authentication, catalog caching, parallel downloads with
// resume/verify, and the legacy-installer fallback for titles that
// predate the content-system API.
package main

func main() {
	Execute()
}
