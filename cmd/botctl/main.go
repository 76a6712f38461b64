package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/suPer8Hu/nutribot/internal/config"
	"github.com/suPer8Hu/nutribot/internal/db"
	"github.com/suPer8Hu/nutribot/internal/httpapi/middleware"
	"github.com/suPer8Hu/nutribot/internal/knowledge"
	"github.com/suPer8Hu/nutribot/internal/logging"
)

var (
	cfg config.Config
	log *zap.Logger

	seedFile     string
	tokenSubject string
	tokenTTL     time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "botctl",
	Short:         "Maintenance commands for the nutrition bot",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		l, err := logging.New(cfg.LogLevel, cfg.LogJSON)
		if err != nil {
			return err
		}
		log = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := openDB(); err != nil {
			return err
		}
		log.Info("schema migrated", zap.String("driver", cfg.DBDriver))
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load FAQ entries and articles from a YAML or JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(seedFile)
		if err != nil {
			return err
		}
		defer f.Close()

		seed, err := parseSeed(f)
		if err != nil {
			return fmt.Errorf("parse %s: %w", seedFile, err)
		}
		gdb, err := openDB()
		if err != nil {
			return err
		}
		n, err := importSeed(cmd.Context(), knowledge.NewRepo(gdb), seed)
		if err != nil {
			return err
		}
		log.Info("knowledge imported", zap.Int("faq", n.faq), zap.Int("articles", n.articles))
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the ops API",
	RunE: func(cmd *cobra.Command, args []string) error {
		tok, err := middleware.SignToken(cfg.JWTSecret, tokenSubject, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func openDB() (*gorm.DB, error) {
	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(gdb); err != nil {
		return nil, err
	}
	return gdb, nil
}

func init() {
	importCmd.Flags().StringVarP(&seedFile, "file", "f", "", "seed file with faq and articles")
	_ = importCmd.MarkFlagRequired("file")

	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "ops", "token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")

	rootCmd.AddCommand(migrateCmd, importCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
