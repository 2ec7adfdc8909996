package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/solsticelabs/chatpulse/internal/config"
	"github.com/solsticelabs/chatpulse/internal/gateway"
)

var rootCmd = &cobra.Command{
	Use:   "chatpulse",
	Short: "chatpulse - community activity tracker bot",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bot (event ingestion + commands + broadcast)",
	RunE:  runGateway,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show chatpulse status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(runCmd, onboardCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Log.Environment == "development" || cfg.Log.Environment == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"})
	}
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogger(cfg)

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token not set. Run 'chatpulse onboard' or set CHATPULSE_TELEGRAM_TOKEN")
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	return gw.Run(context.Background())
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgDir := config.ConfigDir()
	cfgPath := config.ConfigPath()

	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		data, _ := json.MarshalIndent(cfg, "", "  ")
		if err := os.WriteFile(cfgPath, data, 0644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Created config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s to set your telegram token\n", cfgPath)
	fmt.Println("  2. Or set CHATPULSE_TELEGRAM_TOKEN")
	fmt.Println("  3. Optionally set CHATPULSE_REDIS_URL for persistent counters")
	fmt.Println("  4. Run 'chatpulse run'")

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	if cfg.Telegram.Token != "" {
		fmt.Println("Telegram token: set")
	} else {
		fmt.Println("Telegram token: not set")
	}
	if cfg.Store.RedisURL != "" {
		fmt.Printf("Counter store: redis (%s)\n", cfg.Store.RedisURL)
	} else {
		fmt.Println("Counter store: in-memory (set CHATPULSE_REDIS_URL to persist)")
	}
	if cfg.Broadcast.Enabled {
		fmt.Printf("Broadcast: enabled, chat %d\n", cfg.Broadcast.ChatID)
	} else {
		fmt.Println("Broadcast: disabled")
	}
	fmt.Printf("Log level: %s\n", cfg.Log.Level)

	return nil
}
