package utils

const (
	// IgnoreFileName is the name of the project's ignore file.
	IgnoreFileName = ".ignore"
	// GitIgnoreFileName is the name of the Git ignore file.
	GitIgnoreFileName = ".gitignore"
	// GitDirectoryName is the name of the Git repository directory.
	GitDirectoryName = ".git"

	// ConfigFileName is the local configuration file looked up in the working directory.
	ConfigFileName = ".flatten.yaml"
	// GlobalConfigFileName is the configuration file inside GlobalConfigDirectoryName.
	GlobalConfigFileName = "config.yaml"
	// TemporaryFileInfix separates an artifact name from the random suffix of its
	// temporary sibling.
	TemporaryFileInfix = ".tmp-"

	// GlobalConfigDirectoryName is the configuration directory under the user's home.
	GlobalConfigDirectoryName = ".flatten"

	// LoggerInitializationFailedMessageFormat reports a logger construction failure.
	LoggerInitializationFailedMessageFormat = "failed to initialize logger: %w"
	// ApplicationExecutionFailedMessage prefixes fatal errors returned by the CLI.
	ApplicationExecutionFailedMessage = "flatten failed"
)
