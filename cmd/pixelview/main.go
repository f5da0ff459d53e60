package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pixelstream/viewer/internal/app"
	"github.com/pixelstream/viewer/internal/config"
	"github.com/pixelstream/viewer/internal/session"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run returns the process exit code so deferred cleanup, such as closing
// the log file, happens before the process exits.
func run(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("pixelview", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "config.yaml", "Path to config file")
	wsURL := fs.String("url", "", "Override the frame server WebSocket URL")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if *wsURL != "" {
		cfg.Viewer.URL = *wsURL
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Invalid config: %v\n", err)
		return 1
	}

	// The alt screen owns stdout, so logs go to a file.
	if cfg.Viewer.LogFile != "" {
		f, err := tea.LogToFile(cfg.Viewer.LogFile, "pixelview")
		if err != nil {
			fmt.Fprintf(stderr, "Failed to open log file: %v\n", err)
			return 1
		}
		defer f.Close()
	}

	transport := session.NewTransport(cfg.Viewer.URL, session.TransportOptions{
		PingInterval: cfg.Session.PingInterval,
		PongTimeout:  cfg.Session.PongTimeout,
		WriteTimeout: cfg.Session.WriteTimeout,
	})
	m, err := app.New(cfg, transport)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if fm, ok := final.(app.Model); ok && fm.Err() != nil {
		fmt.Fprintf(stderr, "Error: %v\n", fm.Err())
		return 1
	}
	return 0
}
