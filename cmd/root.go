package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Retrieval-augmented document question answering service",
	Long: `docqa ingests documents (PDF, DOCX, TXT, Markdown), splits them into
overlapping chunks stored in an embedded vector database, and answers
natural-language questions by retrieving relevant chunks and invoking a
language model with per-session conversational memory.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".docqa.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
