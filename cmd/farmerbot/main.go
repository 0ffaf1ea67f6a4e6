package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aiml096/farmer-bot/cmd/farmerbot/internal"
	"github.com/aiml096/farmer-bot/cmd/farmerbot/internal/run"
	"github.com/aiml096/farmer-bot/cmd/farmerbot/internal/version"
)

func NewFarmerbotCommand() *cobra.Command {
	short := fmt.Sprintf("%s farmerbot - Malayalam farming assistant for Telegram", internal.Logo)

	cmd := &cobra.Command{
		Use:          "farmerbot",
		Short:        short,
		Example:      "farmerbot run --config ~/.farmerbot/config.json",
		SilenceUsage: true,
	}

	cmd.AddCommand(
		run.NewRunCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	if err := NewFarmerbotCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
