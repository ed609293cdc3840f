package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/temirov/flatten/internal/config"
	"github.com/temirov/flatten/internal/flatten"
	"github.com/temirov/flatten/internal/output"
	"github.com/temirov/flatten/internal/services/watch"
	"github.com/temirov/flatten/internal/tokenizer"
	"github.com/temirov/flatten/internal/types"
	"github.com/temirov/flatten/internal/utils"
)

const (
	defaultOutputFileName = "flattened.txt"

	errorInvalidFormat   = "invalid format value '%s' (expected raw, json or xml)"
	errorInvalidDebounce = "invalid watch debounce %q: %w"
)

// commandFlags holds the raw flag values of the root command.
type commandFlags struct {
	outputPath          string
	toStdout            bool
	exclusionPatterns   []string
	excludedDirectories []string
	extensions          []string
	format              string
	summary             bool
	tokens              bool
	model               string
	useGitignore        bool
	useIgnoreFile       bool
	copyToClipboard     bool
	watch               bool
	configPath          string
	showVersion         bool
}

// runSettings is the effective configuration after merging configuration
// files with explicitly set flags.
type runSettings struct {
	outputPath          string
	toStdout            bool
	format              string
	summary             bool
	tokens              bool
	model               string
	useGitignore        bool
	useIgnoreFile       bool
	excludedDirectories []string
	extensions          []string
	exclusionPatterns   []string
	copyToClipboard     bool
	watch               bool
	debounce            time.Duration
}

// resolveSettings layers explicitly changed flags over the loaded configuration,
// which itself is layered over built-in defaults. Directory names, extensions
// and exclusion patterns accumulate across all layers.
func resolveSettings(flagSet *pflag.FlagSet, flags commandFlags, applicationConfig config.ApplicationConfiguration) (runSettings, error) {
	settings := runSettings{
		outputPath:      defaultOutputFileName,
		format:          types.FormatRaw,
		model:           tokenizer.DefaultModel,
		debounce:        watch.DefaultDebounce,
		toStdout:        flags.toStdout,
		watch:           flags.watch,
		summary:         boolOrDefault(applicationConfig.Summary, false),
		tokens:          boolOrDefault(applicationConfig.Tokens.Enabled, false),
		copyToClipboard: boolOrDefault(applicationConfig.Clipboard, false),
	}
	settings.useGitignore = boolOrDefault(applicationConfig.Paths.UseGitignore, false)
	settings.useIgnoreFile = boolOrDefault(applicationConfig.Paths.UseIgnoreFile, false)
	if applicationConfig.Output != "" {
		settings.outputPath = applicationConfig.Output
	}
	if applicationConfig.Format != "" {
		settings.format = applicationConfig.Format
	}
	if applicationConfig.Tokens.Model != "" {
		settings.model = applicationConfig.Tokens.Model
	}
	if applicationConfig.Watch.Debounce != "" {
		debounce, parseError := time.ParseDuration(applicationConfig.Watch.Debounce)
		if parseError != nil {
			return runSettings{}, fmt.Errorf(errorInvalidDebounce, applicationConfig.Watch.Debounce, parseError)
		}
		settings.debounce = debounce
	}

	if flagSet.Changed(outputFlagName) {
		settings.outputPath = flags.outputPath
	}
	if flagSet.Changed(formatFlagName) {
		settings.format = flags.format
	}
	if flagSet.Changed(summaryFlagName) {
		settings.summary = flags.summary
	}
	if flagSet.Changed(tokensFlagName) {
		settings.tokens = flags.tokens
	}
	if flagSet.Changed(modelFlagName) {
		settings.model = flags.model
	}
	if flagSet.Changed(gitignoreFlagName) {
		settings.useGitignore = flags.useGitignore
	}
	if flagSet.Changed(ignoreFileFlagName) {
		settings.useIgnoreFile = flags.useIgnoreFile
	}
	if flagSet.Changed(copyFlagName) {
		settings.copyToClipboard = flags.copyToClipboard
	}

	settings.format = strings.ToLower(strings.TrimSpace(settings.format))
	if !output.IsSupportedFormat(settings.format) {
		return runSettings{}, fmt.Errorf(errorInvalidFormat, settings.format)
	}

	settings.excludedDirectories = utils.DeduplicatePatterns(concatenate(
		flatten.DefaultExcludedDirectories(),
		applicationConfig.ExcludedDirectories,
		flags.excludedDirectories,
	))
	settings.extensions = utils.DeduplicatePatterns(concatenate(
		flatten.DefaultIncludedExtensions(),
		applicationConfig.Extensions,
		flags.extensions,
	))
	settings.exclusionPatterns = utils.DeduplicatePatterns(concatenate(
		applicationConfig.Paths.Exclude,
		flags.exclusionPatterns,
	))
	return settings, nil
}

func boolOrDefault(value *bool, defaultValue bool) bool {
	if value == nil {
		return defaultValue
	}
	return *value
}

func concatenate(groups ...[]string) []string {
	var combined []string
	for _, group := range groups {
		combined = append(combined, group...)
	}
	return combined
}
