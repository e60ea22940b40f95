package cmd

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/spf13/cobra"
)

var tracksCmd = &cobra.Command{
	Use:   "tracks",
	Short: "List the remote track catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		asYAML, _ := cmd.Flags().GetBool("yaml")
		if asYAML {
			out, err := yaml.Marshal(cfg.Tracks)
			if err != nil {
				return fmt.Errorf("error marshaling tracks: %w", err)
			}
			fmt.Print(string(out))
			return nil
		}

		fmt.Printf("🎵 Tracks (%d)\n", len(cfg.Tracks))
		fmt.Printf("═══════════════════════════════════════\n\n")
		for i, t := range cfg.Tracks {
			fmt.Printf("  %d. %s\n", i, t.Name)
			fmt.Printf("     %s\n", t.URL)
		}
		fmt.Printf("\n💡 Play one with: audiodemo play --track N\n")
		return nil
	},
}

func init() {
	tracksCmd.Flags().Bool("yaml", false, "print the catalog as YAML")
}
