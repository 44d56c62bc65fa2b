package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paketku/paketku/internal/catalog"
	"github.com/paketku/paketku/internal/config"
	"github.com/paketku/paketku/internal/logging"
)

// catalogCmd validates and prints the curated offer catalogs.
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Validate and list the curated offer catalogs",
	RunE:  runCatalog,
}

func init() {
	RootCmd.AddCommand(catalogCmd)
}

func runCatalog(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(globalFlags.Config)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.NewLogger(logging.WithLevel(logging.LevelWarn))

	for _, entry := range []struct {
		name string
		path string
	}{
		{"hot", cfg.Catalog.HotPath},
		{"hot2", cfg.Catalog.Hot2Path},
	} {
		c, cerr := catalog.New(entry.path, logger)
		if cerr != nil {
			return fmt.Errorf("catalog %s (%s) is invalid: %w", entry.name, entry.path, cerr)
		}
		offers := c.Offers()
		fmt.Printf("%s (%s): %d offers\n", entry.name, entry.path, len(offers))
		for i, o := range offers {
			fmt.Printf("  %2d. %-40s %d\n", i+1, o.Label(), o.Price)
		}
	}
	return nil
}
