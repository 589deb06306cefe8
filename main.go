package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/nconklindev/oct/internal/config"
	"github.com/nconklindev/oct/internal/logging"
	"github.com/nconklindev/oct/internal/types"
	"github.com/nconklindev/oct/internal/ui"
	"github.com/nconklindev/oct/internal/wizard"
	"github.com/nconklindev/oct/internal/worker"

	tea "github.com/charmbracelet/bubbletea"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Handle --version flag
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-v") {
		fmt.Printf("oct %s\ncommit: %s\nbuilt: %s\n", version, commit, date)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	logFile, err := logging.OpenFile(cfg.Logging.File)
	if err != nil {
		fmt.Printf("Error: opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format, logFile)
	slog.Info("starting", "version", version, "settle_delay", cfg.Convert.SettleDelay)

	ctrl := wizard.New(&types.Session{}, worker.New(cfg.Convert.SettleDelay))
	model := ui.InitialModel(ctrl, ui.Options{
		StartDir:   cfg.Picker.StartDir,
		ShowHidden: cfg.Picker.ShowHidden,
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		slog.Error("program failed", "error", err)
		fmt.Printf("Error: %v\n", err)
		logFile.Close()
		os.Exit(1)
	}
}
