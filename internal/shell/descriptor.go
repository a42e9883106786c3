package shell

import (
	"fmt"
	"runtime"

	"github.com/joho/godotenv"
)

const osReleasePath = "/etc/os-release"

var osNames = map[string]string{
	"windows": "Windows",
	"darwin":  "macOS",
	"linux":   "Linux",
	"freebsd": "FreeBSD",
}

// Descriptor names the host operating system for the prompt, e.g.
// "Linux (Ubuntu 24.04 LTS, amd64)".
func Descriptor() string {
	return describe(runtime.GOOS, runtime.GOARCH, osReleasePath)
}

func describe(goos, goarch, releasePath string) string {
	name, ok := osNames[goos]
	if !ok {
		name = goos
	}

	if goos == "linux" && releasePath != "" {
		// os-release is KEY="value" lines, which godotenv parses as is.
		if rel, err := godotenv.Read(releasePath); err == nil && rel["PRETTY_NAME"] != "" {
			return fmt.Sprintf("%s (%s, %s)", name, rel["PRETTY_NAME"], goarch)
		}
	}

	return fmt.Sprintf("%s (%s)", name, goarch)
}
