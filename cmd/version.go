package cmd

import (
	"fmt"
	"os"
	"runtime"
)

// runVersion displays version and environment information.
func runVersion() {
	fmt.Printf("scholar %s\n", AppVersion)
	fmt.Printf("  Build time: %s\n", BuildTime)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Go version: %s\n", runtime.Version())
	fmt.Printf("  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Println()
	fmt.Printf("  GEMINI_API_KEY: %s\n", maskSecret(os.Getenv("GEMINI_API_KEY")))
	fmt.Printf("  DATABASE_URL:   %s\n", presence(os.Getenv("DATABASE_URL")))
	fmt.Printf("  ZOTERO_API_KEY: %s\n", maskSecret(os.Getenv("ZOTERO_API_KEY")))
}

// maskSecret shows only the first and last two characters of a secret.
func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}

func presence(s string) string {
	if s == "" {
		return "(not set)"
	}
	return "(set)"
}
