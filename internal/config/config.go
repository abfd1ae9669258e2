// Package config loads and validates per-directory .amp.yaml configuration
// files and resolves the watch roots from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/agentmemory/amp/internal/errors"
)

const (
	// Filename is the fixed configuration file name discovered under
	// watch roots. One configuration governs exactly one directory.
	Filename = ".amp.yaml"

	// EnvPaths is the environment variable holding the list of root
	// directories to scan, joined with the platform path separator.
	EnvPaths = "AGENT_MEMORY_PATHS"

	// DefaultTruthFile is the canonical source file when the config does
	// not name one.
	DefaultTruthFile = "AGENT.md"
)

// agentTargets maps each known agent tool to the instruction file it reads,
// relative to the configured directory.
var agentTargets = map[string]string{
	"claude": "CLAUDE.md",
	"gemini": "GEMINI.md",
	"cursor": filepath.Join(".cursor", "rules", "project.mdc"),
	"qwen":   "QWEN.md",
}

// KnownAgents returns the supported agent identifiers, sorted.
func KnownAgents() []string {
	agents := make([]string, 0, len(agentTargets))
	for a := range agentTargets {
		agents = append(agents, a)
	}
	sort.Strings(agents)
	return agents
}

// Mapping pairs a target file (relative to the configured directory) with
// the truth file that feeds it. Immutable after load.
type Mapping struct {
	// TargetRel is the agent instruction file, relative to the directory.
	TargetRel string

	// SourceName is the truth file name the target mirrors.
	SourceName string
}

// WatchConfig is the validated configuration for one watched directory.
// Immutable after Load.
type WatchConfig struct {
	// ConfigPath is the absolute path of the .amp.yaml file.
	ConfigPath string

	// Directory is the absolute directory the config governs.
	Directory string

	// Mappings are the target/source pairs, in agent declaration order.
	Mappings []Mapping

	// Recursive enables same-filename matching in subdirectories.
	Recursive bool

	// RespectGitignore enables gitignore-aware event and discovery filtering.
	RespectGitignore bool

	// TruthFile is the canonical source file name.
	TruthFile string
}

// rawConfig mirrors the YAML document. Pointers distinguish absent booleans
// from explicit false.
type rawConfig struct {
	Agents           []string `yaml:"agents"`
	RespectGitignore *bool    `yaml:"respect_gitignore"`
	TruthMemoryFile  string   `yaml:"truth_memory_file"`
	Recursive        *bool    `yaml:"recursive"`
}

// Load reads and validates the configuration file at path.
// Validation failures are fatal to this one configuration only; callers
// skip the directory and continue.
func Load(path string) (*WatchConfig, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.New(errors.ErrCodeInvalidPath, fmt.Sprintf("resolve config path %s", path), err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, errors.New(errors.ErrCodeConfigNotFound, fmt.Sprintf("read config %s", absPath), err)
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("invalid YAML in %s", absPath), err)
	}

	if len(raw.Agents) == 0 {
		return nil, errors.ConfigError(
			fmt.Sprintf("invalid config in %s: missing 'agents' section", absPath), nil).
			WithSuggestion("list at least one agent, e.g. agents: [claude]")
	}

	truthFile := raw.TruthMemoryFile
	if truthFile == "" {
		truthFile = DefaultTruthFile
	}

	cfg := &WatchConfig{
		ConfigPath:       absPath,
		Directory:        filepath.Dir(absPath),
		Recursive:        boolOr(raw.Recursive, true),
		RespectGitignore: boolOr(raw.RespectGitignore, true),
		TruthFile:        truthFile,
	}

	// Mapping order follows agent declaration order; a target declared
	// twice keeps its first source.
	seen := make(map[string]bool, len(raw.Agents))
	for _, agent := range raw.Agents {
		name := strings.ToLower(strings.TrimSpace(agent))
		target, ok := agentTargets[name]
		if !ok {
			return nil, errors.New(errors.ErrCodeUnknownAgent,
				fmt.Sprintf("unknown agent %q in %s", agent, absPath), nil).
				WithSuggestion("available agents: " + strings.Join(KnownAgents(), ", "))
		}
		if seen[target] {
			continue
		}
		seen[target] = true
		cfg.Mappings = append(cfg.Mappings, Mapping{TargetRel: target, SourceName: truthFile})
	}

	slog.Info("loaded config",
		slog.String("path", absPath),
		slog.Int("agents", len(cfg.Mappings)),
		slog.String("truth_file", truthFile),
		slog.Bool("recursive", cfg.Recursive),
		slog.Bool("respect_gitignore", cfg.RespectGitignore))

	return cfg, nil
}

// WatchRoots resolves the root directories to scan from EnvPaths.
// Entries that do not exist or are not directories are dropped with a
// warning. An empty result is a fatal startup error.
func WatchRoots() ([]string, error) {
	return resolveRoots(os.Getenv(EnvPaths))
}

func resolveRoots(pathList string) ([]string, error) {
	var roots []string
	for _, entry := range filepath.SplitList(pathList) {
		if entry == "" {
			continue
		}
		abs, err := filepath.Abs(entry)
		if err != nil {
			slog.Warn("ignoring invalid path", slog.String("path", entry))
			continue
		}
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			slog.Warn("ignoring invalid path", slog.String("path", entry))
			continue
		}
		roots = append(roots, abs)
	}

	if len(roots) == 0 {
		return nil, errors.New(errors.ErrCodeNoWatchRoots,
			"no valid directories specified in "+EnvPaths, nil).
			WithSuggestion("set " + EnvPaths + " to one or more project directories")
	}

	return roots, nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
