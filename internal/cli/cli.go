// Package cli provides the command line interface.
package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/flatten/internal/config"
	"github.com/temirov/flatten/internal/flatten"
	"github.com/temirov/flatten/internal/output"
	"github.com/temirov/flatten/internal/services/clipboard"
	"github.com/temirov/flatten/internal/services/watch"
	"github.com/temirov/flatten/internal/tokenizer"
	"github.com/temirov/flatten/internal/types"
	"github.com/temirov/flatten/internal/utils"
)

const (
	outputFlagName      = "output"
	outputFlagShorthand = "o"
	stdoutFlagName      = "stdout"
	exclusionFlagName   = "e"
	excludeDirFlagName  = "exclude-dir"
	extensionFlagName   = "ext"
	formatFlagName      = "format"
	summaryFlagName     = "summary"
	tokensFlagName      = "tokens"
	modelFlagName       = "model"
	gitignoreFlagName   = "gitignore"
	ignoreFileFlagName  = "ignore-file"
	copyFlagName        = "copy"
	watchFlagName       = "watch"
	configFlagName      = "config"
	versionFlagName     = "version"
	globalFlagName      = "global"
	forceFlagName       = "force"

	defaultRootPath = "."
	rootUse         = "flatten [root]"
	rootShort       = "flatten a repository into a single context file"
	rootLong        = `flatten walks a directory tree, prunes dependency, VCS and build directories,
keeps files with known source and text extensions, and writes one artifact: a
tree of the repository followed by the contents of every included file.
Use --format to select raw, json, or xml output and --watch to regenerate on change.`
	rootExample = `  # Flatten the current directory into flattened.txt
  flatten

  # Flatten ./web as JSON with a summary and token counts
  flatten web --format json --summary --tokens -o web.json

  # Keep regenerating while editing
  flatten --watch`
	initUse   = "init"
	initShort = "write a default configuration file"
	initLong  = `Write the default flatten configuration to .flatten.yaml in the working directory,
or to ~/.flatten/config.yaml with --global.`

	outputFlagDescription     = "output file path"
	stdoutFlagDescription     = "write to standard output instead of a file"
	exclusionFlagDescription  = "exclude path pattern"
	excludeDirFlagDescription = "additional directory name to exclude"
	extensionFlagDescription  = "additional file extension to include"
	formatFlagDescription     = "output format: raw, json or xml"
	summaryFlagDescription    = "append a summary of included files"
	tokensFlagDescription     = "include token counts"
	modelFlagDescription      = "tokenizer model to use for token counting"
	gitignoreFlagDescription  = "also exclude paths listed in .gitignore files"
	ignoreFileFlagDescription = "also exclude paths listed in .ignore files"
	copyFlagDescription       = "copy the output to the system clipboard"
	watchFlagDescription      = "regenerate the output whenever files change"
	configFlagDescription     = "configuration file path"
	versionFlagDescription    = "display application version"
	globalFlagDescription     = "write the global configuration file"
	forceFlagDescription      = "overwrite an existing configuration file"

	versionTemplate        = "flatten version: %s\n"
	confirmationTemplate   = "Flattened %d %s into %s\n"
	watchingTemplate       = "Watching %s for changes (Ctrl+C to stop)\n"
	initConfirmationFormat = "Wrote configuration to %s\n"

	warningClipboardMessage = "unable to copy output to clipboard"

	workingDirectoryErrorFormat = "unable to determine working directory: %w"
	errorAbsolutePathFormat     = "abs failed for '%s': %w"
	errorPathMissingFormat      = "root path '%s' does not exist"
	errorStatFormat             = "stat failed for '%s': %w"
	errorRootNotDirectoryFormat = "root path '%s' is not a directory"
	errorStdoutWatchConflict    = "--stdout cannot be combined with --watch"
)

// CounterFactory creates the token counter for a model.
type CounterFactory func(tokenizer.Config) (tokenizer.Counter, string, error)

// applicationDependencies holds collaborators replaced in tests.
type applicationDependencies struct {
	logger     *zap.Logger
	copier     clipboard.Copier
	newCounter CounterFactory
}

// Execute runs the flatten application until ctx is cancelled or the command completes.
func Execute(ctx context.Context, logger *zap.Logger) error {
	rootCommand := createRootCommand(applicationDependencies{logger: logger})
	rootCommand.SetArgs(attachToggleValues(rootCommand, os.Args[1:]))
	return rootCommand.ExecuteContext(ctx)
}

// createRootCommand builds the root Cobra command.
func createRootCommand(dependencies applicationDependencies) *cobra.Command {
	if dependencies.logger == nil {
		dependencies.logger = zap.NewNop()
	}
	if dependencies.copier == nil {
		dependencies.copier = clipboard.NewService()
	}
	if dependencies.newCounter == nil {
		dependencies.newCounter = tokenizer.NewCounter
	}
	var flags commandFlags

	rootCommand := &cobra.Command{
		Use:           rootUse,
		Short:         rootShort,
		Long:          rootLong,
		Example:       rootExample,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			if flags.showVersion {
				_, err := fmt.Fprintf(command.OutOrStdout(), versionTemplate, utils.GetApplicationVersion())
				return err
			}
			rootPath := defaultRootPath
			if len(arguments) == 1 {
				rootPath = arguments[0]
			}
			return runFlatten(command, rootPath, flags, dependencies)
		},
	}

	bindRootFlags(rootCommand.Flags(), &flags)
	rootCommand.AddCommand(createInitCommand())
	return rootCommand
}

// bindRootFlags registers the root command flags onto flagSet.
func bindRootFlags(flagSet *pflag.FlagSet, flags *commandFlags) {
	flagSet.StringVarP(&flags.outputPath, outputFlagName, outputFlagShorthand, defaultOutputFileName, outputFlagDescription)
	registerToggleFlag(flagSet, &flags.toStdout, stdoutFlagName, false, stdoutFlagDescription)
	flagSet.StringArrayVarP(&flags.exclusionPatterns, exclusionFlagName, exclusionFlagName, nil, exclusionFlagDescription)
	flagSet.StringSliceVar(&flags.excludedDirectories, excludeDirFlagName, nil, excludeDirFlagDescription)
	flagSet.StringSliceVar(&flags.extensions, extensionFlagName, nil, extensionFlagDescription)
	flagSet.StringVar(&flags.format, formatFlagName, types.FormatRaw, formatFlagDescription)
	registerToggleFlag(flagSet, &flags.summary, summaryFlagName, false, summaryFlagDescription)
	registerToggleFlag(flagSet, &flags.tokens, tokensFlagName, false, tokensFlagDescription)
	flagSet.StringVar(&flags.model, modelFlagName, tokenizer.DefaultModel, modelFlagDescription)
	registerToggleFlag(flagSet, &flags.useGitignore, gitignoreFlagName, false, gitignoreFlagDescription)
	registerToggleFlag(flagSet, &flags.useIgnoreFile, ignoreFileFlagName, false, ignoreFileFlagDescription)
	registerToggleFlag(flagSet, &flags.copyToClipboard, copyFlagName, false, copyFlagDescription)
	registerToggleFlag(flagSet, &flags.watch, watchFlagName, false, watchFlagDescription)
	flagSet.StringVar(&flags.configPath, configFlagName, "", configFlagDescription)
	flagSet.BoolVar(&flags.showVersion, versionFlagName, false, versionFlagDescription)
}

// createInitCommand returns the init subcommand.
func createInitCommand() *cobra.Command {
	var global bool
	var force bool

	initCommand := &cobra.Command{
		Use:   initUse,
		Short: initShort,
		Long:  initLong,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			target := config.InitTargetLocal
			if global {
				target = config.InitTargetGlobal
			}
			writtenPath, err := config.InitializeConfiguration(config.InitOptions{Target: target, Force: force})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(command.OutOrStdout(), initConfirmationFormat, writtenPath)
			return err
		},
	}
	registerToggleFlag(initCommand.Flags(), &global, globalFlagName, false, globalFlagDescription)
	registerToggleFlag(initCommand.Flags(), &force, forceFlagName, false, forceFlagDescription)
	return initCommand
}

// flattenRun carries everything needed to regenerate the artifact.
type flattenRun struct {
	command            *cobra.Command
	root               types.ValidatedPath
	settings           runSettings
	absoluteOutputPath string
	tokenCounter       tokenizer.Counter
	tokenModel         string
	dependencies       applicationDependencies
}

// runFlatten resolves configuration, produces the artifact once and keeps
// regenerating it when watching.
func runFlatten(command *cobra.Command, rootPath string, flags commandFlags, dependencies applicationDependencies) error {
	workingDirectory, workingDirectoryError := os.Getwd()
	if workingDirectoryError != nil {
		return fmt.Errorf(workingDirectoryErrorFormat, workingDirectoryError)
	}
	applicationConfig, configError := config.LoadApplicationConfiguration(config.LoadOptions{
		WorkingDirectory: workingDirectory,
		ExplicitFilePath: flags.configPath,
	})
	if configError != nil {
		return configError
	}
	settings, settingsError := resolveSettings(command.Flags(), flags, applicationConfig)
	if settingsError != nil {
		return settingsError
	}
	if settings.toStdout && settings.watch {
		return errors.New(errorStdoutWatchConflict)
	}

	root, rootError := resolveRoot(rootPath)
	if rootError != nil {
		return rootError
	}

	run := &flattenRun{
		command:            command,
		root:               root,
		settings:           settings,
		absoluteOutputPath: settings.outputPath,
		dependencies:       dependencies,
	}
	if !filepath.IsAbs(run.absoluteOutputPath) {
		run.absoluteOutputPath = filepath.Join(workingDirectory, settings.outputPath)
	}
	if settings.tokens {
		counter, model, counterError := dependencies.newCounter(tokenizer.Config{Model: settings.model})
		if counterError != nil {
			return counterError
		}
		run.tokenCounter = counter
		run.tokenModel = model
	}

	ctx := command.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if !settings.watch {
		return run.generate(ctx)
	}

	watcher, watcherError := run.newWatcher()
	if watcherError != nil {
		return watcherError
	}
	if err := run.generate(ctx); err != nil {
		_ = watcher.Close()
		return err
	}
	if _, err := fmt.Fprintf(command.OutOrStdout(), watchingTemplate, root.AbsolutePath); err != nil {
		_ = watcher.Close()
		return err
	}
	return watcher.Run(ctx, run.generate)
}

// resolveRoot converts the root argument to absolute form and validates it.
func resolveRoot(rootPath string) (types.ValidatedPath, error) {
	absolutePath, absolutePathError := filepath.Abs(rootPath)
	if absolutePathError != nil {
		return types.ValidatedPath{}, fmt.Errorf(errorAbsolutePathFormat, rootPath, absolutePathError)
	}
	cleanPath := filepath.Clean(absolutePath)
	info, statError := os.Stat(cleanPath)
	if statError != nil {
		if errors.Is(statError, fs.ErrNotExist) {
			return types.ValidatedPath{}, fmt.Errorf(errorPathMissingFormat, rootPath)
		}
		return types.ValidatedPath{}, fmt.Errorf(errorStatFormat, rootPath, statError)
	}
	if !info.IsDir() {
		return types.ValidatedPath{}, fmt.Errorf(errorRootNotDirectoryFormat, rootPath)
	}
	return types.ValidatedPath{AbsolutePath: cleanPath, IsDir: true}, nil
}

// options builds the walk options, rereading ignore files so edits to them
// apply to the next regeneration.
func (run *flattenRun) options() (flatten.Options, error) {
	artifactPath := run.absoluteOutputPath
	if run.settings.toStdout {
		artifactPath = ""
	}
	ignorePatterns, loadError := config.LoadRecursiveIgnorePatterns(run.root.AbsolutePath, config.IgnoreOptions{
		UseGitignore:        run.settings.useGitignore,
		UseIgnoreFile:       run.settings.useIgnoreFile,
		ExcludedDirectories: run.settings.excludedDirectories,
		ExclusionPatterns:   run.settings.exclusionPatterns,
	})
	if loadError != nil {
		return flatten.Options{}, loadError
	}
	return flatten.Options{
		Root:                run.root.AbsolutePath,
		ExcludedDirectories: run.settings.excludedDirectories,
		IncludedExtensions:  run.settings.extensions,
		IgnorePatterns:      ignorePatterns,
		ArtifactPath:        artifactPath,
		TokenCounter:        run.tokenCounter,
		TokenModel:          run.tokenModel,
		Logger:              run.dependencies.logger,
	}, nil
}

// generate renders the artifact once, reports it and copies it when requested.
func (run *flattenRun) generate(ctx context.Context) error {
	options, optionsError := run.options()
	if optionsError != nil {
		return optionsError
	}
	rendererSettings := output.Settings{IncludeSummary: run.settings.summary}

	if run.settings.toStdout {
		var captured bytes.Buffer
		destination := run.command.OutOrStdout()
		if run.settings.copyToClipboard {
			destination = io.MultiWriter(destination, &captured)
		}
		renderer, rendererError := output.NewRenderer(run.settings.format, destination, rendererSettings)
		if rendererError != nil {
			return rendererError
		}
		if _, err := flatten.Flatten(ctx, options, renderer); err != nil {
			return err
		}
		if run.settings.copyToClipboard {
			run.warnOnClipboardError(run.dependencies.copier.Copy(captured.String()))
		}
		return nil
	}

	var summary types.OutputSummary
	writeError := output.WriteArtifact(run.absoluteOutputPath, func(writer io.Writer) error {
		renderer, rendererError := output.NewRenderer(run.settings.format, writer, rendererSettings)
		if rendererError != nil {
			return rendererError
		}
		renderedSummary, flattenError := flatten.Flatten(ctx, options, renderer)
		summary = renderedSummary
		return flattenError
	})
	if writeError != nil {
		return writeError
	}

	if _, err := fmt.Fprintf(run.command.OutOrStdout(), confirmationTemplate, summary.TotalFiles, utils.Pluralize(summary.TotalFiles, "file", "files"), run.settings.outputPath); err != nil {
		return err
	}
	if run.settings.copyToClipboard {
		run.warnOnClipboardError(clipboard.CopyFile(run.dependencies.copier, run.absoluteOutputPath))
	}
	return nil
}

func (run *flattenRun) warnOnClipboardError(err error) {
	if err != nil {
		run.dependencies.logger.Warn(warningClipboardMessage, zap.Error(err))
	}
}

// newWatcher starts observing the root before the first generation so no
// change made during it is lost.
func (run *flattenRun) newWatcher() (*watch.Watcher, error) {
	options, optionsError := run.options()
	if optionsError != nil {
		return nil, optionsError
	}
	return watch.New(watch.Config{
		Root:     run.root.AbsolutePath,
		Debounce: run.settings.debounce,
		Skip:     flatten.NewPathFilter(options).Skip,
		Logger:   run.dependencies.logger,
	})
}
