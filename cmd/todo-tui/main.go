// Command todo-tui is a terminal client for the todo API.
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/example/todo-api/client"
	"github.com/example/todo-api/controller"
	"github.com/example/todo-api/tui"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "todo-tui:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := loadConfig(flag.NewFlagSet("todo-tui", flag.ContinueOnError), args)
	if err != nil {
		return err
	}

	// The alt screen owns stdout, so logs go to a file
	logFile, err := tea.LogToFile(cfg.LogFile, "todo-tui")
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()

	logger := log.NewWithOptions(logFile, log.Options{
		ReportTimestamp: true,
		Prefix:          "todo-tui",
	})
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}
	api := client.New(cfg.APIURL, client.WithTimeout(cfg.Timeout))
	logger.Info("starting", "api_url", api.BaseURL())

	ctrl := controller.New(api, logger)

	p := tea.NewProgram(tui.New(ctrl, cfg.Timeout), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running UI: %w", err)
	}
	return nil
}
