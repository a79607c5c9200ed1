// Package utils holds the CLI plumbing shared by every ghkeeper command: the
// Viper-backed ConfigurationLoader (embedded defaults, config file, GHKEEPER_*
// environment) and the zap LoggerFactory.
package utils
