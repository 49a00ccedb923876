package config

// applyOperationDefaults fills unset operation fields from the global AI config.
func (c *Config) applyOperationDefaults(opCfg *OperationAIConfig) {
	if opCfg.Provider == "" {
		opCfg.Provider = c.AI.Provider
	}
	if opCfg.Model == "" {
		opCfg.Model = c.AI.Model
	}
	if opCfg.Timeout == nil {
		timeout := c.AI.Timeout
		opCfg.Timeout = &timeout
	}
	if opCfg.APIKey == "" {
		opCfg.APIKey = c.AI.APIKey
	}
	if opCfg.MaxRetries == nil {
		retries := c.AI.MaxRetries
		opCfg.MaxRetries = &retries
	}
	if opCfg.Temperature == nil {
		temperature := c.AI.Temperature
		opCfg.Temperature = &temperature
	}
	if opCfg.UseSystemPrompts == nil {
		use := c.AI.UseSystemPrompts
		opCfg.UseSystemPrompts = &use
	}

	prompts := &opCfg.CustomPrompts
	global := c.AI.CustomPrompts
	if prompts.SystemPrompt == "" {
		prompts.SystemPrompt = global.SystemPrompt
	}
	if prompts.UserPrompt == "" {
		prompts.UserPrompt = global.UserPrompt
	}
	if prompts.SystemPromptFile == "" {
		prompts.SystemPromptFile = global.SystemPromptFile
	}
	if prompts.UserPromptFile == "" {
		prompts.UserPromptFile = global.UserPromptFile
	}
}

// GetOptimizeConfig returns the AI configuration for optimize operations with fallback to global config.
func (c *Config) GetOptimizeConfig() OperationAIConfig {
	config := c.AI.Optimize
	c.applyOperationDefaults(&config)
	return config
}
