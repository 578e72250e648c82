// Package main provides the entry point for the operator console.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"race-provider/internal/console"
)

func main() {
	if _, statErr := os.Stat(".env"); statErr == nil {
		_ = godotenv.Load(".env")
	}

	defaultURL := "http://localhost:3000/stream"
	if port := os.Getenv("PORT"); port != "" {
		defaultURL = fmt.Sprintf("http://localhost:%s/stream", port)
	}
	streamURL := flag.String("stream", defaultURL, "provider SSE stream URL")
	flag.Parse()

	p := tea.NewProgram(console.NewModel(), tea.WithAltScreen())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go console.StreamEvents(ctx, *streamURL, p)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "console error: %v\n", err)
		os.Exit(1)
	}
}
