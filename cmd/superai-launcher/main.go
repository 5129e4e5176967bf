package main

import (
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// lifecycleScripts are the names the s2i image links the binary under, so
// `assemble`, `save-artifacts`, and `run` behave like standalone executables.
var lifecycleScripts = []string{"assemble", "save-artifacts", "run"}

// maybeInjectRootAlias makes a bare invocation behave like the inject
// subcommand, keeping `superai-launcher` with no arguments equivalent to
// `superai-launcher run`.
func maybeInjectRootAlias(rootCmd *cobra.Command, inject string) {
	invokedAs := filepath.Base(os.Args[0])
	for _, script := range lifecycleScripts {
		if invokedAs == script {
			os.Args = append([]string{os.Args[0], script}, os.Args[1:]...)
			return
		}
	}

	nonRootCmds := nonRootSubCmds(rootCmd)
	if len(os.Args) > 1 {
		for _, v := range nonRootCmds {
			if os.Args[1] == v {
				return
			}
		}
		// Flags like --help still belong to the root command.
		if len(os.Args[1]) > 0 && os.Args[1][0] == '-' {
			return
		}
	}
	os.Args = append([]string{os.Args[0], inject}, os.Args[1:]...)
}

func nonRootSubCmds(rootCmd *cobra.Command) []string {
	res := []string{"help"}
	for _, c := range rootCmd.Commands() {
		res = append(res, c.Name())
		res = append(res, c.Aliases...)
	}
	return res
}

func main() {
	rootCmd := newRootCmd()
	maybeInjectRootAlias(rootCmd, "run")

	if err := newRootCmd().Execute(); err != nil {
		log.WithError(err).Fatal("fatal error running the superai launcher")
	}
}
