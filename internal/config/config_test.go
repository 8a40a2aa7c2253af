package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
)

// ConfigSuite redirects HOME to a temp directory so tests never touch
// the real ~/.promptkit.
type ConfigSuite struct {
	suite.Suite
	home string
}

func (s *ConfigSuite) SetupTest() {
	s.home = s.T().TempDir()
	s.T().Setenv("HOME", s.home)
	s.T().Setenv("PROMPTKIT_API_KEY", "")
	s.T().Setenv("OPENAI_API_KEY", "")
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) TestDefault() {
	cfg := Default()
	s.Equal(DefaultPort, cfg.Port)
	s.Equal(DefaultMaxTasks, cfg.MaxTasks)
	s.Equal(DefaultBaseURL, cfg.Provider.BaseURL)
	s.Equal(DefaultModel, cfg.Provider.Model)
	s.Empty(cfg.Provider.APIKey)
}

func (s *ConfigSuite) TestPaths() {
	s.Equal(filepath.Join(s.home, ".promptkit"), DataDir())
	s.Equal(filepath.Join(s.home, ".promptkit", "promptkit.db"), DBPath())
	s.Equal(filepath.Join(s.home, ".promptkit", "settings.yaml"), SettingsPath())
}

func (s *ConfigSuite) TestEnsureAll() {
	s.Require().NoError(EnsureAll())

	info, err := os.Stat(DataDir())
	s.Require().NoError(err)
	s.True(info.IsDir())

	data, err := os.ReadFile(SettingsPath())
	s.Require().NoError(err)
	s.Contains(string(data), "port:")
	s.Contains(string(data), "provider:")

	// A second call must not clobber existing settings.
	s.Require().NoError(os.WriteFile(SettingsPath(), []byte("port: 9000\n"), 0o600))
	s.Require().NoError(EnsureAll())
	data, err = os.ReadFile(SettingsPath())
	s.Require().NoError(err)
	s.Equal("port: 9000\n", string(data))
}

func (s *ConfigSuite) TestLoad_MissingFileUsesDefaults() {
	cfg, err := Load()
	s.Require().NoError(err)
	s.Equal(DefaultPort, cfg.Port)
	s.Equal(DefaultModel, cfg.Provider.Model)
}

func (s *ConfigSuite) TestLoad_PartialFileFillsDefaults() {
	s.Require().NoError(EnsureDataDir())
	settings := `port: 9999
provider:
  model: local-model
  base_url: http://localhost:11434/v1
`
	s.Require().NoError(os.WriteFile(SettingsPath(), []byte(settings), 0o600))

	cfg, err := Load()
	s.Require().NoError(err)
	s.Equal(9999, cfg.Port)
	s.Equal("local-model", cfg.Provider.Model)
	s.Equal("http://localhost:11434/v1", cfg.Provider.BaseURL)

	// Unset fields fall back to defaults.
	s.Equal(DefaultMaxTasks, cfg.MaxTasks)
	s.Equal(DefaultMaxTokens, cfg.Provider.MaxTokens)
}

func (s *ConfigSuite) TestLoad_MalformedFile() {
	s.Require().NoError(EnsureDataDir())
	s.Require().NoError(os.WriteFile(SettingsPath(), []byte("port: [not a number"), 0o600))

	_, err := Load()
	s.Error(err)
}

func (s *ConfigSuite) TestLoad_EnvOverridesAPIKey() {
	s.T().Setenv("PROMPTKIT_API_KEY", "pk-test")

	cfg, err := Load()
	s.Require().NoError(err)
	s.Equal("pk-test", cfg.Provider.APIKey)
}

func (s *ConfigSuite) TestLoad_FallbackOpenAIKey() {
	s.T().Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	s.Require().NoError(err)
	s.Equal("sk-test", cfg.Provider.APIKey)
}

func (s *ConfigSuite) TestGet_ReturnsLastLoaded() {
	s.Require().NoError(EnsureDataDir())
	s.Require().NoError(os.WriteFile(SettingsPath(), []byte("port: 4242\n"), 0o600))

	_, err := Load()
	s.Require().NoError(err)
	s.Equal(4242, Get().Port)
}
