// Package flagutil builds urfave/cli flags bound to environment variables
// named after the flag: with prefix PINGPONG_NODE, bind-addr is read from
// PINGPONG_NODE_BIND_ADDR.
package flagutil

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
)

var unsafeFlagName = regexp.MustCompile(`[^a-zA-Z0-9_]`)
var dedupUnder = regexp.MustCompile(`__+`)

// EnvVars returns the environment variables checked for the flag name, none
// if envPrefix is empty.
func EnvVars(envPrefix, name string) []string {
	if envPrefix == "" {
		return nil
	}
	return []string{fmt.Sprintf("%v_%v", envPrefix, strings.ToUpper(
		dedupUnder.ReplaceAllString(
			unsafeFlagName.ReplaceAllString(name, "_"),
			"_")))}
}

func String(dest *string, longName string, alias []string, envPrefix string, usage string, required bool) *cli.StringFlag {
	return &cli.StringFlag{
		Destination: dest,
		Value:       *dest,
		Name:        longName,
		Aliases:     alias,
		Usage:       usage,
		Required:    required,
		EnvVars:     EnvVars(envPrefix, longName),
	}
}

func Bool(dest *bool, longName string, alias []string, envPrefix string, usage string, required bool) *cli.BoolFlag {
	return &cli.BoolFlag{
		Destination: dest,
		Value:       *dest,
		Name:        longName,
		Aliases:     alias,
		Usage:       usage,
		Required:    required,
		EnvVars:     EnvVars(envPrefix, longName),
	}
}

func Int(dest *int, longName string, alias []string, envPrefix string, usage string, required bool) *cli.IntFlag {
	return &cli.IntFlag{
		Destination: dest,
		Value:       *dest,
		Name:        longName,
		Aliases:     alias,
		Usage:       usage,
		Required:    required,
		EnvVars:     EnvVars(envPrefix, longName),
	}
}

func Duration(dest *time.Duration, longName string, alias []string, envPrefix string, usage string, required bool) *cli.DurationFlag {
	return &cli.DurationFlag{
		Destination: dest,
		Value:       *dest,
		Name:        longName,
		Aliases:     alias,
		Usage:       usage,
		Required:    required,
		EnvVars:     EnvVars(envPrefix, longName),
	}
}
