package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kodal/kodal/pkg/config"
	"github.com/kodal/kodal/pkg/coord"
	"github.com/kodal/kodal/pkg/keyring"
	"github.com/kodal/kodal/pkg/log"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "kodal",
	Short: "Kodal - Korean public-data API gateway",
	Long: `Kodal is a gateway in front of the Korean public-data portals,
exposing a uniform JSON API with credential management, rate limiting,
response caching, and coordinate transformation between the seven
coordinate systems in Korean use.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Kodal version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to the YAML config file (default kodal.yaml when present)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(transformCmd)
}

// Keys command

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Print the masked API key inventory and expiry report",
	Long: `Print every configured portal credential with its provider, masked
secret, status, and expiry. Exits non-zero when the primary key is
missing, malformed, or unusable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		keys, err := keyring.New(keyring.Options{
			Primary:       cfg.Keys.Primary,
			PrimaryExpiry: cfg.Keys.PrimaryExpiry,
			Services:      cfg.Keys.Services,
			Logger:        log.Logger,
		})
		if err != nil {
			return err
		}

		for _, provider := range keys.Providers() {
			rec, ok := keys.KeyInfo(provider)
			if !ok {
				continue
			}
			fmt.Printf("%-12s %-16s %-10s expires %s\n",
				rec.Provider,
				keyring.MaskKey(rec.Secret),
				rec.Status,
				rec.ExpiresAt.Format("2006-01-02"))
		}

		keys.CheckExpiry()

		if _, err := keys.Get(keyring.PrimaryProvider); err != nil {
			return fmt.Errorf("primary key unusable: %w", err)
		}
		return nil
	},
}

// Transform command

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Convert one coordinate pair between systems",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		x, _ := cmd.Flags().GetFloat64("x")
		y, _ := cmd.Flags().GetFloat64("y")

		engine := coord.New(coord.Options{Logger: log.Logger})
		result, err := engine.TransformWithMetadata(
			coord.Point{X: x, Y: y}, coord.Code(from), coord.Code(to))
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	transformCmd.Flags().String("from", "", "Source coordinate system (required)")
	transformCmd.Flags().String("to", string(coord.WGS84), "Target coordinate system")
	transformCmd.Flags().Float64("x", 0, "X coordinate / longitude (required)")
	transformCmd.Flags().Float64("y", 0, "Y coordinate / latitude (required)")
	_ = transformCmd.MarkFlagRequired("from")
	_ = transformCmd.MarkFlagRequired("x")
	_ = transformCmd.MarkFlagRequired("y")
}
