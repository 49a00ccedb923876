package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// LoadedPrompts holds prompt content read from files at startup.
type LoadedPrompts struct {
	SystemPrompt string
	UserPrompt   string
}

// AllLoadedPrompts holds the global and optimize-specific file prompts.
type AllLoadedPrompts struct {
	Global   LoadedPrompts
	Optimize LoadedPrompts
}

// LoadedOptimizePrompts returns the file prompts for the optimize operation,
// falling back to the global files.
func (c *Config) LoadedOptimizePrompts() LoadedPrompts {
	out := c.loaded.Optimize
	if out.SystemPrompt == "" {
		out.SystemPrompt = c.loaded.Global.SystemPrompt
	}
	if out.UserPrompt == "" {
		out.UserPrompt = c.loaded.Global.UserPrompt
	}
	return out
}

// loadPromptsFromFiles loads custom prompts from external files if file paths are specified.
func (c *Config) loadPromptsFromFiles() error {
	log.Println("[CONFIG] Starting custom prompt loading from files")

	if err := c.loadPromptPair(c.AI.CustomPrompts, &c.loaded.Global, "global"); err != nil {
		return err
	}
	if err := c.loadPromptPair(c.AI.Optimize.CustomPrompts, &c.loaded.Optimize, "optimize"); err != nil {
		return err
	}

	count := 0
	for _, p := range []string{c.loaded.Global.SystemPrompt, c.loaded.Global.UserPrompt, c.loaded.Optimize.SystemPrompt, c.loaded.Optimize.UserPrompt} {
		if p != "" {
			count++
		}
	}
	if count == 0 {
		log.Println("[CONFIG] No custom prompts loaded - using built-in defaults")
	} else {
		log.Printf("[CONFIG] Total custom prompts loaded: %d", count)
	}
	return nil
}

func (c *Config) loadPromptPair(prompts PromptConfig, target *LoadedPrompts, operation string) error {
	if prompts.SystemPromptFile != "" {
		content, err := c.loadPromptFromFile(prompts.SystemPromptFile, "system", operation)
		if err != nil {
			return err
		}
		target.SystemPrompt = content
	}
	if prompts.UserPromptFile != "" {
		content, err := c.loadPromptFromFile(prompts.UserPromptFile, "user", operation)
		if err != nil {
			return err
		}
		target.UserPrompt = content
	}
	return nil
}

// loadPromptFromFile reads and trims a prompt file; empty files are rejected.
func (c *Config) loadPromptFromFile(filePath, promptType, operation string) (string, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %s %s prompt file '%s': %w", promptType, operation, filePath, err)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s %s prompt file not found: %s", promptType, operation, absPath)
		}
		return "", fmt.Errorf("failed to read %s %s prompt file '%s': %w", promptType, operation, absPath, err)
	}

	trimmed := strings.TrimSpace(string(content))
	if trimmed == "" {
		return "", fmt.Errorf("%s %s prompt file '%s' is empty", promptType, operation, absPath)
	}

	log.Printf("[CONFIG] Successfully loaded %s %s prompt from file: %s (%d characters)",
		promptType, operation, absPath, len(trimmed))
	return trimmed, nil
}

// validatePromptFiles checks that every configured prompt file exists before loading.
func (c *Config) validatePromptFiles() error {
	var validationErrors []string

	validateFile := func(filePath, promptType, operation string) {
		if filePath == "" {
			return
		}
		absPath, err := filepath.Abs(filePath)
		if err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("invalid path for %s %s prompt: %s", promptType, operation, filePath))
			return
		}
		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			validationErrors = append(validationErrors, fmt.Sprintf("%s %s prompt file not found: %s", promptType, operation, absPath))
		}
	}

	validateFile(c.AI.CustomPrompts.SystemPromptFile, "system", "global")
	validateFile(c.AI.CustomPrompts.UserPromptFile, "user", "global")
	validateFile(c.AI.Optimize.CustomPrompts.SystemPromptFile, "system", "optimize")
	validateFile(c.AI.Optimize.CustomPrompts.UserPromptFile, "user", "optimize")

	if len(validationErrors) > 0 {
		return fmt.Errorf("prompt file validation failed:\n%s", strings.Join(validationErrors, "\n"))
	}
	return nil
}
