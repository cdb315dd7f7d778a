/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/meshconv/types"
)

const (
	ExitFailure = 1
	ExitUsage   = 2
)

var (
	logger      = logrus.New()
	stopProfile func()
)

// NewRootCmd returns the meshconv command with both conversions attached
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "meshconv",
		Short: "Convert tetrahedral meshes between LS-DYNA keyword files and VTK unstructured grids",
		Long: `
Converts 4-node tetrahedral meshes between LS-DYNA keyword (.k) files and VTK XML
unstructured grid (.vtu) files. On the way back a per-cell stiffness field "E" is
binned into material groups, written as *PART / *SECTION_SOLID / *MAT_ELASTIC cards.

meshconv mesh-to-grid mesh.k mesh.vtu
meshconv grid-to-mesh mesh.vtu out.k mats.k 0`,
	}
	withGlobalFlags(root)
	root.AddCommand(NewMeshToGridCmd(), NewGridToMeshCmd())
	return root
}

// withGlobalFlags sets up configuration, logging and profiling for a command
// run as a program
func withGlobalFlags(c *cobra.Command) *cobra.Command {
	c.SilenceUsage = true
	c.SilenceErrors = true
	c.PersistentFlags().String("config", "", "config file (default is $HOME/.meshconv.yaml)")
	c.PersistentFlags().BoolP("verbose", "v", false, "log debug output")
	c.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error (overrides --verbose)")
	c.PersistentFlags().String("profile", "", "write a CPU profile into this directory")
	c.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return types.NewUsageError("%v", err)
	})
	c.PersistentPreRunE = func(cmd *cobra.Command, args []string) (err error) {
		if err = viper.BindPFlags(cmd.Flags()); err != nil {
			return
		}
		if err = initConfig(); err != nil {
			return
		}
		setupLogger(logger, cmd.ErrOrStderr(), viper.GetString("log-level"), viper.GetBool("verbose"))
		if dir := viper.GetString("profile"); dir != "" {
			stopProfile = profile.Start(profile.CPUProfile, profile.ProfilePath(dir), profile.Quiet, profile.NoShutdownHook).Stop
		}
		if file := viper.ConfigFileUsed(); file != "" {
			logger.Debugf("using config file %s", file)
		}
		return
	}
	return c
}

// initConfig reads in config file and ENV variables if set
func initConfig() error {
	cfgFile := viper.GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return err
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".meshconv")
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix("MESHCONV")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

func setupLogger(l *logrus.Logger, w io.Writer, level string, verbose bool) {
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	switch strings.ToLower(level) {
	case "debug":
		l.SetLevel(logrus.DebugLevel)
	case "info":
		l.SetLevel(logrus.InfoLevel)
	case "warn":
		l.SetLevel(logrus.WarnLevel)
	case "error":
		l.SetLevel(logrus.ErrorLevel)
	default:
		if verbose {
			l.SetLevel(logrus.DebugLevel)
		} else {
			l.SetLevel(logrus.InfoLevel)
		}
	}
}

// ExitCode maps a command error to the process exit status
func ExitCode(err error) int {
	var ue *types.UsageError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &ue):
		return ExitUsage
	}
	return ExitFailure
}

func printError(w io.Writer, err error) {
	msg := fmt.Sprintf("Error: %v\n", err)
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		red := color.New(color.FgRed)
		red.EnableColor()
		msg = red.Sprint(msg)
	}
	fmt.Fprint(w, msg)
}

// Run executes c with args and returns the exit status
func Run(c *cobra.Command, args []string) int {
	c.SetArgs(args)
	err := c.Execute()
	if stopProfile != nil {
		stopProfile()
		stopProfile = nil
	}
	if err != nil {
		printError(c.ErrOrStderr(), err)
	}
	return ExitCode(err)
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	os.Exit(Run(NewRootCmd(), os.Args[1:]))
}

// ExecuteStandalone runs a single conversion command as its own program
func ExecuteStandalone(newCmd func() *cobra.Command) {
	os.Exit(Run(withGlobalFlags(newCmd()), os.Args[1:]))
}
