package main

import (
	"github.com/spf13/cobra"
)

const version = "0.1.0"

type rootFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "glmtools",
		Short: "glmtools - tool calling for ChatGLM3-style models",
		Long: `glmtools renders ChatGLM3 prompts, streams replies from an OpenAI-compatible completion
endpoint and runs the tools the model asks for.

Key commands:
  glmtools serve    Serve the /meet/chat streaming endpoint
  glmtools chat     Chat in the terminal (/mode tool enables tools)
  glmtools tools    List the registered tools`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to glmtools.yaml or glmtools.toml")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")

	cmd.AddCommand(newServeCmd(flags), newChatCmd(flags), newToolsCmd(flags))
	return cmd
}
