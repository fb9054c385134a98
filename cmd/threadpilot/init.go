package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/threadpilot/internal/config"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactively create a config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, err := resolveConfigPath(cmd)
			if err != nil {
				return err
			}
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("%s already exists, remove it first", cfgPath)
			}

			var (
				appToken     string
				botToken     string
				apiKeyEnv    = "OPENAI_API_KEY"
				model        string
				systemPrompt = "You are a helpful Slack assistant. Keep replies short."
				transcriptOn bool
			)

			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("Slack app-level token").
						Description("Starts with xapp-; needed for Socket Mode").
						Value(&appToken),
					huh.NewInput().
						Title("Slack bot token").
						Description("Starts with xoxb-").
						Value(&botToken),
				),
				huh.NewGroup(
					huh.NewInput().
						Title("Provider API key environment variable").
						Value(&apiKeyEnv),
					huh.NewInput().
						Title("Model").
						Placeholder("gpt-4o-mini").
						Value(&model),
					huh.NewText().
						Title("System prompt").
						Value(&systemPrompt),
					huh.NewConfirm().
						Title("Record exchanges to a local transcript?").
						Value(&transcriptOn),
				),
			)
			if err := form.Run(); err != nil {
				return err
			}

			cfg := config.Config{
				Version:      "1",
				SystemPrompt: systemPrompt,
			}
			cfg.Slack.AppToken = appToken
			cfg.Slack.BotToken = botToken
			cfg.Provider.APIKeyEnv = apiKeyEnv
			cfg.Provider.Model = model
			if transcriptOn {
				cfg.Transcript.Enabled = true
				cfg.Transcript.Path = filepath.Join(filepath.Dir(cfgPath), "transcript.db")
			}

			data, err := yaml.Marshal(&cfg)
			if err != nil {
				return fmt.Errorf("encoding config: %w", err)
			}
			if err := os.MkdirAll(filepath.Dir(cfgPath), 0o700); err != nil {
				return fmt.Errorf("creating config directory: %w", err)
			}
			if err := os.WriteFile(cfgPath, data, 0o600); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}

			fmt.Printf("Wrote %s\n", cfgPath)
			return nil
		},
	}
}
