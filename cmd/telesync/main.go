package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/thewnetwork/telesync/internal/config"
	"github.com/thewnetwork/telesync/internal/mirror"
	"github.com/thewnetwork/telesync/internal/telebox"
	"github.com/thewnetwork/telesync/internal/utils"
	"github.com/thewnetwork/telesync/internal/version"
)

var (
	home, _        = os.UserHomeDir()
	configFileName = "config"
)

var cyan = color.New(color.FgHiCyan, color.Bold).SprintFunc()

var rootCmd = &cobra.Command{
	Use:     "telesync",
	Short:   "Mirror a local directory tree to Telebox",
	Version: version.Detailed(),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// create & validate config
		cfg := &config.Config{
			Path:         viper.ConfigFileUsed(),
			Token:        viper.GetString("token"),
			ServerURL:    viper.GetString("server_url"),
			BaseFolderID: viper.GetInt64("base_folder_id"),
			Workers:      viper.GetInt("workers"),
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		dirFlag, _ := cmd.Flags().GetString("dir")
		folderName, _ := cmd.Flags().GetString("folder")

		dir, err := utils.ResolvePath(dirFlag)
		if err != nil {
			return err
		}
		if !utils.DirExists(dir) {
			return fmt.Errorf("local dir does not exist: %s", dir)
		}

		// all good now, stop cobra from printing usage on runtime errors
		cmd.SilenceUsage = true
		fmt.Println(cyan(version.AppName) + " " + version.Short())

		sdk, err := telebox.New(&telebox.Config{
			BaseURL: cfg.ServerURL,
			Token:   cfg.Token,
		})
		if err != nil {
			return err
		}

		slog.Info("starting mirror run",
			"dir", dir,
			"folder", folderName,
			"base_folder_id", cfg.BaseFolderID,
			"workers", cfg.Workers,
			"token", utils.MaskSecret(cfg.Token))

		m := mirror.New(sdk, mirror.Options{Workers: cfg.Workers})
		if err := m.Run(cmd.Context(), mirror.Context{
			Dir:          dir,
			FolderName:   folderName,
			BaseFolderID: cfg.BaseFolderID,
		}); err != nil {
			return err
		}

		slog.Info("mirror run complete")
		return nil
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("dir", "d", "", "Local root directory to mirror from")
	rootCmd.Flags().StringP("folder", "f", "", "Name of the subfolder to mirror")
	rootCmd.Flags().Int64P("basefolder", "b", 0, "Remote base folder id")
	rootCmd.Flags().IntP("workers", "w", config.DefaultWorkers, "Max concurrent uploads per directory")
	rootCmd.Flags().StringP("token", "t", "", "Telebox API token")
	rootCmd.Flags().StringP("server", "s", config.DefaultServerURL, "Telebox API server")
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "TeleSync config file")
	rootCmd.MarkFlagRequired("dir")
	rootCmd.MarkFlagRequired("folder")
}

func main() {
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) error {
	// config path
	if cmd.Flag("config").Changed {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath(filepath.Join(home, ".telesync"))
		viper.SetConfigName(configFileName)
		viper.SetConfigType("json")
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	// Bind flags to viper
	viper.BindPFlag("token", cmd.Flags().Lookup("token"))
	viper.BindPFlag("base_folder_id", cmd.Flags().Lookup("basefolder"))
	viper.BindPFlag("workers", cmd.Flags().Lookup("workers"))
	viper.BindPFlag("server_url", cmd.Flags().Lookup("server"))

	// Set up environment variables
	viper.SetEnvPrefix("TELESYNC")
	viper.AutomaticEnv()

	return nil
}
