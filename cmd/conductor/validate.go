package main

import (
	"fmt"

	"github.com/conductorhq/conductor/config"
)

// ValidateCmd loads a config file and reports whether it passes
// SetDefaults+Validate, without starting anything (grounded on hector's
// cmd/hector/validate.go).
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	cfg, err := config.LoadConfig(cli.Config)
	if err != nil {
		return fmt.Errorf("config invalid: %w", err)
	}
	fmt.Printf("config OK: %d agent(s), %d pattern(s), %d workflow(s), %d llm provider(s)\n",
		len(cfg.Agents), len(cfg.Patterns), len(cfg.Workflows), len(cfg.LLMs))
	return nil
}
