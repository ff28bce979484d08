package config

import (
	"github.com/spf13/pflag"
)

// Flag names shared by the xlinspect commands.
const (
	FlagPretty       = "pretty"
	FlagPassword     = "password"
	FlagConvertDates = "convert-dates"
	FlagSheet        = "sheet"
	FlagLogLevel     = "log-level"
	FlagLogFormat    = "log-format"
)

// RegisterFlags adds the configuration flags to fs. Their defaults only
// document the built-in values; ApplyFlags reads a flag only when it was
// set explicitly.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.Bool(FlagPretty, d.Output.Pretty, "Pretty-print JSON output")
	fs.String(FlagPassword, "", "Password for encrypted workbooks")
	fs.Bool(FlagConvertDates, false, "Convert date-formatted numbers to timestamps")
	fs.StringArray(FlagSheet, nil, "Only inspect this sheet (repeatable, case-insensitive)")
	fs.String(FlagLogLevel, d.Logging.Level, "Log level: debug, info, warn, error")
	fs.String(FlagLogFormat, d.Logging.Format, "Log format: text, json")
}

// ApplyFlags overrides c with every flag of fs that was set on the command
// line and validates the result.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	var err error
	if fs.Changed(FlagPretty) {
		if c.Output.Pretty, err = fs.GetBool(FlagPretty); err != nil {
			return err
		}
	}
	if fs.Changed(FlagPassword) {
		if c.Password, err = fs.GetString(FlagPassword); err != nil {
			return err
		}
	}
	if fs.Changed(FlagConvertDates) {
		if c.ConvertDates, err = fs.GetBool(FlagConvertDates); err != nil {
			return err
		}
	}
	if fs.Changed(FlagSheet) {
		if c.Sheets, err = fs.GetStringArray(FlagSheet); err != nil {
			return err
		}
	}
	if fs.Changed(FlagLogLevel) {
		if c.Logging.Level, err = fs.GetString(FlagLogLevel); err != nil {
			return err
		}
	}
	if fs.Changed(FlagLogFormat) {
		if c.Logging.Format, err = fs.GetString(FlagLogFormat); err != nil {
			return err
		}
	}
	return c.Validate()
}
