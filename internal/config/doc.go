// Package config loads locker settings with viper.
//
// Sources, lowest priority first: built-in defaults, locker.yaml (in the
// working directory or ~/.config/locker), LOCKER_* environment variables
// such as LOCKER_ARCHIVE_FORMAT, and bound command-line flags. The password
// is never read from configuration.
package config
