// Package config provides configuration types for the conductor runtime.
// This file contains all configuration types in a unified structure, the
// way hector's config package lays out provider/agent/workflow configs
// side by side under one root Config.
package config

import (
	"fmt"

	"github.com/conductorhq/conductor/observability"
)

// ============================================================================
// ROOT CONFIG
// ============================================================================

// Config is the complete process configuration: the single entry point for
// everything conductor needs to boot — logging, the LLM providers an agent
// may be bound to, the agent roster, pattern and workflow templates, and
// the ambient subsystems (sandbox, guardrails, watchdog, store, server).
type Config struct {
	Version     string            `yaml:"version,omitempty"`
	Name        string            `yaml:"name,omitempty"`
	Description string            `yaml:"description,omitempty"`
	Metadata    map[string]string `yaml:"metadata,omitempty"`

	Global GlobalSettings `yaml:"global,omitempty"`

	LLMs map[string]LLMProviderConfig `yaml:"llms,omitempty"`

	Agents    map[string]AgentConfig    `yaml:"agents,omitempty"`
	Patterns  map[string]PatternConfig  `yaml:"patterns,omitempty"`
	Workflows map[string]WorkflowConfig `yaml:"workflows,omitempty"`
}

func (c *Config) Validate() error {
	if err := c.Global.Validate(); err != nil {
		return fmt.Errorf("global settings validation failed: %w", err)
	}
	for name, llm := range c.LLMs {
		if err := llm.Validate(); err != nil {
			return fmt.Errorf("LLM '%s' validation failed: %w", name, err)
		}
	}
	for name, agent := range c.Agents {
		if err := agent.Validate(); err != nil {
			return fmt.Errorf("agent '%s' validation failed: %w", name, err)
		}
	}
	for name, pattern := range c.Patterns {
		if err := pattern.Validate(); err != nil {
			return fmt.Errorf("pattern '%s' validation failed: %w", name, err)
		}
	}
	for name, wf := range c.Workflows {
		if err := wf.Validate(); err != nil {
			return fmt.Errorf("workflow '%s' validation failed: %w", name, err)
		}
	}
	return nil
}

func (c *Config) SetDefaults() {
	c.Global.SetDefaults()

	if c.LLMs == nil {
		c.LLMs = make(map[string]LLMProviderConfig)
	}
	if c.Agents == nil {
		c.Agents = make(map[string]AgentConfig)
	}
	if c.Patterns == nil {
		c.Patterns = make(map[string]PatternConfig)
	}
	if c.Workflows == nil {
		c.Workflows = make(map[string]WorkflowConfig)
	}

	if len(c.LLMs) == 0 {
		c.LLMs["default"] = LLMProviderConfig{}
	}

	for name := range c.LLMs {
		llm := c.LLMs[name]
		llm.SetDefaults()
		c.LLMs[name] = llm
	}
	for name := range c.Agents {
		a := c.Agents[name]
		a.SetDefaults()
		c.Agents[name] = a
	}
	for name := range c.Patterns {
		p := c.Patterns[name]
		p.SetDefaults()
		c.Patterns[name] = p
	}
	for name := range c.Workflows {
		w := c.Workflows[name]
		w.SetDefaults()
		c.Workflows[name] = w
	}
}

func (c *Config) GetAgent(name string) (*AgentConfig, bool) {
	a, ok := c.Agents[name]
	return &a, ok
}

func (c *Config) GetWorkflow(name string) (*WorkflowConfig, bool) {
	w, ok := c.Workflows[name]
	return &w, ok
}

func (c *Config) ListAgents() []string {
	names := make([]string, 0, len(c.Agents))
	for n := range c.Agents {
		names = append(names, n)
	}
	return names
}

// ============================================================================
// GLOBAL SETTINGS
// ============================================================================

type GlobalSettings struct {
	Logging       LoggingConfig        `yaml:"logging,omitempty"`
	Server        ServerConfig         `yaml:"server,omitempty"`
	Auth          AuthConfig           `yaml:"auth,omitempty"`
	Sandbox       SandboxConfig        `yaml:"sandbox,omitempty"`
	Guardrails    GuardrailsConfig     `yaml:"guardrails,omitempty"`
	Watchdog      WatchdogConfig       `yaml:"watchdog,omitempty"`
	Store         StoreConfig          `yaml:"store,omitempty"`
	Observability observability.Config `yaml:"observability,omitempty"`
}

func (c *GlobalSettings) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config validation failed: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config validation failed: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth config validation failed: %w", err)
	}
	if err := c.Sandbox.Validate(); err != nil {
		return fmt.Errorf("sandbox config validation failed: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store config validation failed: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability config validation failed: %w", err)
	}
	return nil
}

func (c *GlobalSettings) SetDefaults() {
	c.Logging.SetDefaults()
	c.Server.SetDefaults()
	c.Sandbox.SetDefaults()
	c.Guardrails.SetDefaults()
	c.Watchdog.SetDefaults()
	c.Store.SetDefaults()
	c.Observability.SetDefaults()
}

// LoggingConfig controls the logger package.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug|info|warn|error
	Format string `yaml:"format,omitempty"` // text|json
}

func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Level)
	}
	return nil
}

func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
}

// ServerConfig controls the Mission Control API HTTP server.
type ServerConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
}

func (c *ServerConfig) Validate() error {
	if c.Port != 0 && (c.Port <= 0 || c.Port > 65535) {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}

func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8088
	}
}

// AuthConfig — conductor validates bearer JWTs issued by an external
// identity provider; it is a JWT consumer, never an issuer.
type AuthConfig struct {
	Enabled  bool   `yaml:"enabled"`
	JWKSURL  string `yaml:"jwks_url"`
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
}

func (c *AuthConfig) Validate() error {
	if c.Enabled {
		if c.JWKSURL == "" {
			return fmt.Errorf("jwks_url is required when auth is enabled")
		}
		if c.Issuer == "" {
			return fmt.Errorf("issuer is required when auth is enabled")
		}
		if c.Audience == "" {
			return fmt.Errorf("audience is required when auth is enabled")
		}
	}
	return nil
}

// SandboxConfig controls the Subprocess Sandbox.
type SandboxConfig struct {
	DockerEnabled    bool   `yaml:"docker_enabled"`
	Image            string `yaml:"image,omitempty"`
	Network          string `yaml:"network,omitempty"` // none|bridge|host
	Memory           string `yaml:"memory,omitempty"`  // e.g. "512m"
	CPUs             int    `yaml:"cpus,omitempty"`
	WorkspaceVolume  string `yaml:"workspace_volume,omitempty"`
	DefaultTimeout   int    `yaml:"default_timeout,omitempty"` // seconds
	RTKEnabled       bool   `yaml:"rtk_enabled"`
	RTKPath          string `yaml:"rtk_path,omitempty"`
}

func (c *SandboxConfig) Validate() error {
	if c.DefaultTimeout < 0 {
		return fmt.Errorf("default_timeout must be >= 0")
	}
	return nil
}

func (c *SandboxConfig) SetDefaults() {
	if c.Image == "" {
		c.Image = "python:3.12-slim"
	}
	if c.Network == "" {
		c.Network = "none"
	}
	if c.Memory == "" {
		c.Memory = "512m"
	}
	if c.CPUs == 0 {
		c.CPUs = 2
	}
	if c.DefaultTimeout == 0 {
		c.DefaultTimeout = 300
	}
}

// GuardrailsConfig controls the tool-call interception policy.
type GuardrailsConfig struct {
	Enabled            bool `yaml:"enabled"`
	BlockCritical      bool `yaml:"block_critical"`
	BlockHigh          bool `yaml:"block_high"`
	BlockMedium        bool `yaml:"block_medium"`
	MaxHighPerSession  int  `yaml:"max_high_per_session,omitempty"`
	CacheTTLSeconds    int  `yaml:"cache_ttl_seconds,omitempty"`
}

func (c *GuardrailsConfig) SetDefaults() {
	c.Enabled = true
	c.BlockCritical = true
	c.BlockHigh = true
	if c.MaxHighPerSession == 0 {
		c.MaxHighPerSession = 5
	}
	if c.CacheTTLSeconds == 0 {
		c.CacheTTLSeconds = 60
	}
}

// WatchdogConfig controls the stall-detection and auto-resume loop.
type WatchdogConfig struct {
	CheckIntervalSeconds        int    `yaml:"check_interval_seconds,omitempty"`
	PhaseStallThresholdSeconds  int    `yaml:"phase_stall_threshold_seconds,omitempty"`
	SessionStaleThresholdSeconds int   `yaml:"session_stale_threshold_seconds,omitempty"`
	ResumeIntervalSeconds       int    `yaml:"resume_interval_seconds,omitempty"`
	ResumeBatchSize             int    `yaml:"resume_batch_size,omitempty"`
	MaxConcurrentRuns           int    `yaml:"max_concurrent_runs,omitempty"`
	MaxResumeAttempts           int    `yaml:"max_resume_attempts,omitempty"`
	DiskAlertPercent            int    `yaml:"disk_alert_percent,omitempty"`
	HealthURL                   string `yaml:"health_url,omitempty"`
}

func (c *WatchdogConfig) SetDefaults() {
	if c.CheckIntervalSeconds == 0 {
		c.CheckIntervalSeconds = 60
	}
	if c.PhaseStallThresholdSeconds == 0 {
		c.PhaseStallThresholdSeconds = 900
	}
	if c.SessionStaleThresholdSeconds == 0 {
		c.SessionStaleThresholdSeconds = 1800
	}
	if c.ResumeIntervalSeconds == 0 {
		c.ResumeIntervalSeconds = 300
	}
	if c.ResumeBatchSize == 0 {
		c.ResumeBatchSize = 5
	}
	if c.MaxConcurrentRuns == 0 {
		c.MaxConcurrentRuns = 10
	}
	if c.MaxResumeAttempts == 0 {
		c.MaxResumeAttempts = 5
	}
	if c.DiskAlertPercent == 0 {
		c.DiskAlertPercent = 90
	}
}

// StoreConfig controls the persisted-state SQL dialect and connection.
type StoreConfig struct {
	Dialect string `yaml:"dialect,omitempty"` // sqlite|postgres|mysql
	DSN     string `yaml:"dsn,omitempty"`
}

func (c *StoreConfig) Validate() error {
	switch c.Dialect {
	case "", "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported store dialect: %s", c.Dialect)
	}
	return nil
}

func (c *StoreConfig) SetDefaults() {
	if c.Dialect == "" {
		c.Dialect = "sqlite"
	}
	if c.DSN == "" {
		c.DSN = "conductor.db"
	}
}

// ============================================================================
// LLM PROVIDER CONFIG
// ============================================================================

type LLMProviderConfig struct {
	Type        string  `yaml:"type"` // openai, anthropic, gemini, ollama
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	Host        string  `yaml:"host,omitempty"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TimeoutSec  int     `yaml:"timeout"`

	// MaxRetries/RetryDelay govern transient-error retry for LLM calls
	// (spec §7: MAX_LLM_RETRIES=2, LLM_RETRY_DELAY=30s).
	MaxRetries int `yaml:"max_retries,omitempty"`
	RetryDelaySec int `yaml:"retry_delay_seconds,omitempty"`
}

func (c *LLMProviderConfig) Validate() error {
	if c.Type == "" {
		return fmt.Errorf("type is required")
	}
	switch c.Type {
	case "openai", "anthropic", "gemini", "ollama":
	default:
		return fmt.Errorf("unsupported llm provider type: %s", c.Type)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be in [0,2]")
	}
	return nil
}

func (c *LLMProviderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "ollama"
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.TimeoutSec == 0 {
		c.TimeoutSec = 120 // spec §5: LLM call timeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2 // spec §7: MAX_LLM_RETRIES
	}
	if c.RetryDelaySec == 0 {
		c.RetryDelaySec = 30 // spec §7: LLM_RETRY_DELAY
	}
}

// ============================================================================
// AGENT CONFIG  (spec §3 AgentDef)
// ============================================================================

type AgentConfig struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	Role          string   `yaml:"role"`
	HierarchyRank int      `yaml:"hierarchy_rank"` // 0-100, lower = more senior
	SystemPrompt  string   `yaml:"system_prompt,omitempty"`
	Persona       string   `yaml:"persona,omitempty"`
	Description   string   `yaml:"description,omitempty"`
	Skills        []string `yaml:"skills,omitempty"`
	Permissions   Permissions `yaml:"permissions,omitempty"`
	Provider      string   `yaml:"provider,omitempty"`
	Model         string   `yaml:"model,omitempty"`
	Temperature   float64  `yaml:"temperature,omitempty"`
	MaxTokens     int      `yaml:"max_tokens,omitempty"`
	Avatar        string   `yaml:"avatar,omitempty"`
	Tagline       string   `yaml:"tagline,omitempty"`
}

type Permissions struct {
	CanDelegate bool `yaml:"can_delegate"`
	CanVeto     bool `yaml:"can_veto"`
	CanApprove  bool `yaml:"can_approve"`
}

func (c *AgentConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("id is required")
	}
	if c.HierarchyRank < 0 || c.HierarchyRank > 100 {
		return fmt.Errorf("hierarchy_rank must be in [0,100]")
	}
	return nil
}

func (c *AgentConfig) SetDefaults() {
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
}

// ============================================================================
// PATTERN CONFIG  (spec §3 PatternDef)
// ============================================================================

type PatternConfig struct {
	ID     string            `yaml:"id"`
	Name   string            `yaml:"name,omitempty"`
	Type   string            `yaml:"type"` // solo|sequential|parallel|loop|hierarchical|network|router|aggregator|wave|human-in-the-loop
	Agents []PatternAgentRef `yaml:"agents,omitempty"`
	Edges  []PatternEdge     `yaml:"edges,omitempty"`
	Config PatternRunConfig  `yaml:"config,omitempty"`
}

type PatternAgentRef struct {
	NodeID  string `yaml:"node_id"`
	AgentID string `yaml:"agent_id,omitempty"` // empty == human slot
}

type PatternEdge struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
	Type string `yaml:"type"` // sequential|parallel|delegate|report|bidirectional|feedback|checkpoint|aggregate|route
}

type PatternRunConfig struct {
	MaxIterations      int    `yaml:"max_iterations,omitempty"`
	MaxRounds          int    `yaml:"max_rounds,omitempty"`
	CheckpointMessage  string `yaml:"checkpoint_message,omitempty"`
}

var validPatternTypes = map[string]bool{
	"solo": true, "sequential": true, "parallel": true, "loop": true,
	"hierarchical": true, "network": true, "router": true, "aggregator": true,
	"wave": true, "human-in-the-loop": true,
}

func (c *PatternConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("id is required")
	}
	if !validPatternTypes[c.Type] {
		return fmt.Errorf("invalid pattern type: %s", c.Type)
	}
	nodes := make(map[string]bool, len(c.Agents))
	for _, a := range c.Agents {
		if a.NodeID == "" {
			return fmt.Errorf("node_id is required")
		}
		if nodes[a.NodeID] {
			return fmt.Errorf("duplicate node_id: %s", a.NodeID)
		}
		nodes[a.NodeID] = true
	}
	for _, e := range c.Edges {
		if !nodes[e.From] {
			return fmt.Errorf("edge.from references unknown node: %s", e.From)
		}
		if !nodes[e.To] {
			return fmt.Errorf("edge.to references unknown node: %s", e.To)
		}
	}
	return nil
}

func (c *PatternConfig) SetDefaults() {
	if c.Config.MaxIterations == 0 {
		c.Config.MaxIterations = 5
	}
	if c.Config.MaxRounds == 0 {
		c.Config.MaxRounds = 3
	}
}

// ============================================================================
// WORKFLOW CONFIG  (spec §3 WorkflowDef)
// ============================================================================

type WorkflowConfig struct {
	ID     string             `yaml:"id"`
	Name   string             `yaml:"name,omitempty"`
	Phases []WorkflowPhaseDef `yaml:"phases,omitempty"`
}

type WorkflowPhaseDef struct {
	PhaseID string             `yaml:"phase_id"`
	Name    string             `yaml:"name,omitempty"`
	PatternID string           `yaml:"pattern_id"`
	Config  WorkflowPhaseConfig `yaml:"config,omitempty"`
}

type WorkflowPhaseConfig struct {
	AgentIDs           []string `yaml:"agent_ids,omitempty"`
	Leader             string   `yaml:"leader,omitempty"`
	Gate               string   `yaml:"gate,omitempty"` // always|no_veto|all_approved
	MaxIterations      int      `yaml:"max_iterations,omitempty"`
	AcceptanceCriteria []string `yaml:"acceptance_criteria,omitempty"`
}

func (c *WorkflowConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("id is required")
	}
	seen := make(map[string]bool, len(c.Phases))
	for _, p := range c.Phases {
		if p.PhaseID == "" {
			return fmt.Errorf("phase_id is required")
		}
		if seen[p.PhaseID] {
			return fmt.Errorf("duplicate phase_id: %s", p.PhaseID)
		}
		seen[p.PhaseID] = true
		if p.Config.Gate != "" {
			switch p.Config.Gate {
			case "always", "no_veto", "all_approved":
			default:
				return fmt.Errorf("invalid gate for phase %s: %s", p.PhaseID, p.Config.Gate)
			}
		}
	}
	return nil
}

func (c *WorkflowConfig) SetDefaults() {
	for i := range c.Phases {
		if c.Phases[i].Config.Gate == "" {
			c.Phases[i].Config.Gate = "always"
		}
		if c.Phases[i].Config.MaxIterations == 0 {
			c.Phases[i].Config.MaxIterations = 1
		}
	}
}
