// Package cli はlinecamコマンドのサブコマンドを定義する
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	debug      bool
}

// NewRootCommand はルートコマンドを作成する
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "linecam",
		Short:         "検査ライン用マルチカメラ管理",
		Long:          `検査ラインの複数カメラ（USB / IVシリーズ / VS）を接続して撮影し、結果を保存・送信します。`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "設定ファイルのパス（省略時は環境変数 LINECAM_CONFIG）")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "debugログを出力する")

	rootCmd.AddCommand(runCommand(opts))
	rootCmd.AddCommand(captureCommand(opts))
	rootCmd.AddCommand(serveCommand(opts))
	rootCmd.AddCommand(devicesCommand())

	return rootCmd
}

// Execute はルートコマンドを実行する
func Execute(ctx context.Context) int {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
