package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	config "github.com/voiceline/gateway/config/tui"
	"github.com/voiceline/gateway/tui"
)

func main() {
	cfg := config.MustLoad()

	if cfg.Token == "" {
		fmt.Fprintln(os.Stderr, "GATEWAY_TOKEN is not set; log in through the web UI and export an access token")
		os.Exit(1)
	}

	client := tui.NewClient(cfg)

	// --list flag: print sessions as plain text (for scripting)
	if len(os.Args) > 1 && os.Args[1] == "--list" {
		sessions, err := client.Sessions(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		for _, s := range sessions {
			fmt.Printf("%-36s │ %-12s │ %3d%% │ %s │ %s\n",
				s.ID, s.Status, s.Progress, s.CreatedAt.Local().Format("01-02 15:04"), s.Filename)
		}
		return
	}

	p := tea.NewProgram(tui.NewModel(client), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
