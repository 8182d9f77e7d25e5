// --- START OF FINAL REVISED FILE cmd/textstore/main.go ---
package main

// Build-time variables 'version', 'commit' and 'date' are declared in root.go
// and populated at build time via -ldflags.

// main is the entry point for the textstore application.
func main() {
	Execute()
}

// --- END OF FINAL REVISED FILE cmd/textstore/main.go ---
