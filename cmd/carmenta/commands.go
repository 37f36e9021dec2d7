package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carmentacollective/carmenta-sub005/internal/config"
	"github.com/carmentacollective/carmenta-sub005/internal/store"
	"github.com/carmentacollective/carmenta-sub005/pkg/retrieval"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database and seed the profile documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfigForInit()
		if err != nil {
			return err
		}
		if dir := filepath.Dir(cfg); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create data directory: %w", err)
			}
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.store.UpsertUser(&store.User{ID: userID}); err != nil {
			return err
		}
		created, err := a.profile.Initialize(userID)
		if err != nil {
			return err
		}
		if created {
			fmt.Println("Profile seeded. Fill in the bracketed sections with `carmenta chat`.")
		} else {
			fmt.Println("Already initialized.")
		}
		return nil
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send a message and print the assistant's reply",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		text := strings.Join(args, " ")
		if strings.TrimSpace(text) == "" {
			reader := bufio.NewReader(os.Stdin)
			fmt.Print("> ")
			line, err := reader.ReadString('\n')
			if err != nil {
				return err
			}
			text = strings.TrimSpace(line)
		}

		conv, err := a.chat.StartConversation(userID, a.cfg.LLM.OpenRouterModel)
		if err != nil {
			return err
		}
		if _, err := a.chat.SendUserMessage(conv.ID, text); err != nil {
			return err
		}

		reply, err := a.chat.Respond(cmd.Context(), conv.ID)
		if err != nil {
			return err
		}
		for _, p := range reply.Parts {
			if p.Kind == store.PartText {
				fmt.Println(p.Content)
			}
		}

		if report, err := a.chat.ExtractKnowledge(cmd.Context(), conv.ID); err == nil && report.Created+report.Updated > 0 {
			fmt.Printf("(saved %d knowledge documents)\n", report.Created+report.Updated)
		}
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		result := a.search.RetrieveContext(userID, retrieval.SearchConfig{
			ShouldSearch: true,
			Queries:      []string{strings.Join(args, " ")},
		})
		if len(result.Documents) == 0 {
			fmt.Println("No matches.")
			return nil
		}
		for _, d := range result.Documents {
			fmt.Printf("%5.2f  %-40s  %s\n", d.Relevance, retrieval.DisplayPath(d.Doc.Path), d.Doc.Name)
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <conversation-id>",
	Short: "Print a conversation as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		out, err := a.chat.ExportConversation(args[0])
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "List conversations interrupted mid-stream and discard them",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		stuck, err := a.chat.FindInterrupted(userID)
		if err != nil {
			return err
		}
		if len(stuck) == 0 {
			fmt.Println("Nothing to recover.")
			return nil
		}
		for _, c := range stuck {
			if err := a.chat.DiscardInterrupted(c.ID); err != nil {
				return err
			}
			title := c.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Printf("discarded partial response in %s  %s\n", c.ID, title)
		}
		return nil
	},
}

// loadConfigForInit resolves the database path before the store opens it.
func loadConfigForInit() (string, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", err
	}
	return cfg.Storage.DatabasePath, nil
}
