package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides (RALPH_PRD_DEFAULT_AGENT, ...).
const EnvPrefix = "RALPH"

// Load reads configuration from the provided path. If path is empty, uses
// DefaultConfigPath. A missing file yields the defaults. Environment
// variables prefixed with RALPH_ override file values, and the legacy
// agents file contributes agent commands.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("agents_file", cfg.AgentsFile)
	v.SetDefault("skip_update_check", cfg.SkipUpdateCheck)
	v.SetDefault("prd.out_dir", cfg.PRD.OutDir)
	v.SetDefault("prd.prompt_path", cfg.PRD.PromptPath)
	v.SetDefault("prd.prompt_template", cfg.PRD.PromptTemplate)
	v.SetDefault("prd.default_agent", cfg.PRD.DefaultAgent)
	for name, agent := range cfg.Agents {
		v.SetDefault("agents."+name+".interactive_cmd", agent.InteractiveCmd)
		v.SetDefault("agents."+name+".display_name", agent.DisplayName)
	}
	v.SetDefault("markers.question", cfg.Markers.Question)
	v.SetDefault("markers.saved", cfg.Markers.Saved)
	v.SetDefault("interview.transcript_tail_lines", cfg.Interview.TranscriptTailLines)
	v.SetDefault("interview.answer_prompt", cfg.Interview.AnswerPrompt)
	v.SetDefault("interview.terminate_grace_ms", cfg.Interview.TerminateGraceMS)
	v.SetDefault("ssh.addr", cfg.SSH.Addr)
	v.SetDefault("ssh.host_key_path", cfg.SSH.HostKeyPath)
	v.SetDefault("ssh.authorized_keys", cfg.SSH.AuthorizedKeys)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.InConfig("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)

	cfg.Source = Source{
		ConfigFile:   path,
		ConfigLoaded: configLoaded,
		AgentsFile:   cfg.AgentsFile,
		AgentOrigins: map[string]string{},
	}
	defaults := DefaultConfig()
	for name := range cfg.Agents {
		origin := OriginConfig
		if _, builtin := defaults.Agents[name]; builtin && !v.InConfig("agents."+name) {
			origin = OriginDefault
		}
		cfg.Source.AgentOrigins[name] = origin
	}

	agentsFile, loaded, err := ReadAgentsFile(cfg.AgentsFile)
	if err != nil {
		return Config{}, err
	}
	if loaded {
		cfg.Source.AgentsFileLoaded = true
		explicitDefault := v.InConfig("prd.default_agent") || envSet("prd.default_agent")
		agentsFile.Apply(&cfg, !explicitDefault)
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if strings.TrimSpace(cfg.StateDir) == "" {
		return fmt.Errorf("state_dir is required")
	}
	if strings.TrimSpace(cfg.PRD.DefaultAgent) == "" {
		return fmt.Errorf("prd.default_agent is required")
	}
	if cfg.Interview.TranscriptTailLines <= 0 {
		return fmt.Errorf("interview.transcript_tail_lines must be positive")
	}
	if cfg.Interview.TerminateGraceMS < 0 {
		return fmt.Errorf("interview.terminate_grace_ms must not be negative")
	}
	if _, err := regexp.Compile(cfg.Markers.Question); err != nil {
		return fmt.Errorf("markers.question: %w", err)
	}
	if _, err := regexp.Compile(cfg.Markers.Saved); err != nil {
		return fmt.Errorf("markers.saved: %w", err)
	}
	return nil
}

func envSet(key string) bool {
	name := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	_, ok := os.LookupEnv(name)
	return ok
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.StateDir = expandEnv(cfg.StateDir)
	cfg.AgentsFile = expandEnv(cfg.AgentsFile)
	cfg.PRD.OutDir = expandEnv(cfg.PRD.OutDir)
	cfg.PRD.PromptPath = expandEnv(cfg.PRD.PromptPath)
	cfg.PRD.PromptTemplate = expandEnv(cfg.PRD.PromptTemplate)
	cfg.SSH.HostKeyPath = expandEnv(cfg.SSH.HostKeyPath)
	cfg.SSH.AuthorizedKeys = expandEnv(cfg.SSH.AuthorizedKeys)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	case "HOME":
		if home, err := os.UserHomeDir(); err == nil {
			return home, true
		}
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
