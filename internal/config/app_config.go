package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/temirov/flatten/internal/utils"
)

// LoadOptions controls how application configuration is discovered.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
	HomeDirectory    string
}

// ApplicationConfiguration holds defaults for the flatten command.
// Pointer fields distinguish values absent from every file from explicit false or zero.
type ApplicationConfiguration struct {
	Output              string             `mapstructure:"output"`
	Format              string             `mapstructure:"format"`
	Summary             *bool              `mapstructure:"summary"`
	Clipboard           *bool              `mapstructure:"copy"`
	ExcludedDirectories []string           `mapstructure:"exclude_dirs"`
	Extensions          []string           `mapstructure:"extensions"`
	Tokens              TokenConfiguration `mapstructure:"tokens"`
	Paths               PathConfiguration  `mapstructure:"paths"`
	Watch               WatchConfiguration `mapstructure:"watch"`
}

// TokenConfiguration controls token counting defaults.
type TokenConfiguration struct {
	Enabled *bool  `mapstructure:"enabled"`
	Model   string `mapstructure:"model"`
}

// PathConfiguration configures ignore rules for path traversal.
type PathConfiguration struct {
	Exclude       []string `mapstructure:"exclude"`
	UseGitignore  *bool    `mapstructure:"use_gitignore"`
	UseIgnoreFile *bool    `mapstructure:"use_ignore"`
}

// WatchConfiguration configures regeneration on file changes.
type WatchConfiguration struct {
	Debounce string `mapstructure:"debounce"`
}

// LoadApplicationConfiguration loads configuration from the global file and then the local one,
// letting local values override global values.
func LoadApplicationConfiguration(options LoadOptions) (ApplicationConfiguration, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, err := os.Getwd()
		if err != nil {
			return ApplicationConfiguration{}, fmt.Errorf("determine working directory: %w", err)
		}
		workingDirectory = currentDirectory
	}

	var merged ApplicationConfiguration

	homeDirectory := options.HomeDirectory
	if homeDirectory == "" {
		if resolvedHome, err := os.UserHomeDir(); err == nil {
			homeDirectory = resolvedHome
		}
	}
	if homeDirectory != "" {
		globalPath := filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName, utils.GlobalConfigFileName)
		globalConfig, loadErr := loadConfigurationFromPath(globalPath, false)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(globalConfig)
	}

	localPath := resolveLocalConfigPath(workingDirectory, options.ExplicitFilePath)
	localConfig, loadErr := loadConfigurationFromPath(localPath, options.ExplicitFilePath != "")
	if loadErr != nil {
		return ApplicationConfiguration{}, loadErr
	}
	merged = merged.Merge(localConfig)

	merged.Paths.Exclude = utils.DeduplicatePatterns(merged.Paths.Exclude)
	merged.ExcludedDirectories = utils.DeduplicatePatterns(merged.ExcludedDirectories)
	merged.Extensions = utils.DeduplicatePatterns(merged.Extensions)

	return merged, nil
}

func resolveLocalConfigPath(workingDirectory, explicitPath string) string {
	if explicitPath != "" {
		if filepath.IsAbs(explicitPath) {
			return explicitPath
		}
		return filepath.Join(workingDirectory, explicitPath)
	}
	return filepath.Join(workingDirectory, utils.ConfigFileName)
}

// loadConfigurationFromPath reads one YAML file. A missing file yields an empty
// configuration unless required is set, as it is for --config.
func loadConfigurationFromPath(path string, required bool) (ApplicationConfiguration, error) {
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) && !required {
			return ApplicationConfiguration{}, nil
		}
		return ApplicationConfiguration{}, fmt.Errorf("stat configuration %s: %w", path, statErr)
	}
	if info.IsDir() {
		return ApplicationConfiguration{}, fmt.Errorf("configuration path %s is a directory", path)
	}

	reader := viper.New()
	reader.SetConfigFile(path)
	reader.SetConfigType("yaml")
	if readErr := reader.ReadInConfig(); readErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("read configuration from %s: %w", path, readErr)
	}
	var config ApplicationConfiguration
	if decodeErr := reader.Unmarshal(&config); decodeErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("decode configuration from %s: %w", path, decodeErr)
	}
	return config, nil
}

// Merge overlays override onto the receiver returning the combined configuration.
func (config ApplicationConfiguration) Merge(override ApplicationConfiguration) ApplicationConfiguration {
	result := config
	if override.Output != "" {
		result.Output = override.Output
	}
	if override.Format != "" {
		result.Format = override.Format
	}
	if override.Summary != nil {
		result.Summary = cloneBool(override.Summary)
	}
	if override.Clipboard != nil {
		result.Clipboard = cloneBool(override.Clipboard)
	}
	if len(override.ExcludedDirectories) > 0 {
		result.ExcludedDirectories = append([]string{}, override.ExcludedDirectories...)
	}
	if len(override.Extensions) > 0 {
		result.Extensions = append([]string{}, override.Extensions...)
	}
	result.Tokens = result.Tokens.merge(override.Tokens)
	result.Paths = result.Paths.merge(override.Paths)
	if override.Watch.Debounce != "" {
		result.Watch.Debounce = override.Watch.Debounce
	}
	return result
}

func (config TokenConfiguration) merge(override TokenConfiguration) TokenConfiguration {
	result := config
	if override.Enabled != nil {
		result.Enabled = cloneBool(override.Enabled)
	}
	if override.Model != "" {
		result.Model = override.Model
	}
	return result
}

func (config PathConfiguration) merge(override PathConfiguration) PathConfiguration {
	result := config
	if len(override.Exclude) > 0 {
		result.Exclude = append([]string{}, override.Exclude...)
	}
	if override.UseGitignore != nil {
		result.UseGitignore = cloneBool(override.UseGitignore)
	}
	if override.UseIgnoreFile != nil {
		result.UseIgnoreFile = cloneBool(override.UseIgnoreFile)
	}
	return result
}

func cloneBool(value *bool) *bool {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}
