package cli

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"linecam/internal/camera"
	"linecam/internal/server"
)

func devicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "USBカメラとして設定できるローカルデバイスを一覧表示する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := camera.NewDiscovery().Scan(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), devices)
		},
	}
}

func runCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "全カメラで1回ずつ検査する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(root)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.runner.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("検査を中断しました: %w", err)
			}
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}

			if failed := report.Failed(); failed > 0 {
				return fmt.Errorf("%d台のカメラで検査に失敗しました", failed)
			}
			return nil
		},
	}
}

func captureCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "capture <name>",
		Short: "指定したカメラだけで検査する",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(root)
			if err != nil {
				return err
			}
			defer a.Close()

			outcome := a.runner.RunCamera(cmd.Context(), args[0])
			if err := printJSON(cmd.OutOrStdout(), outcome); err != nil {
				return err
			}
			return outcome.Err
		},
	}
}

func serveCommand(root *rootOptions) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "カメラ操作用のHTTP APIを起動する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(root)
			if err != nil {
				return err
			}
			defer a.Close()

			if host != "" {
				a.cfg.Server.Host = host
			}
			if port != 0 {
				a.cfg.Server.Port = port
			}

			srv := server.New(a.cfg, a.registry, a.runner, a.logger)
			return srv.Start(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
	cmd.Flags().IntVar(&port, "port", 0, "サーバーのポート (デフォルト: 8080)")

	return cmd
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("結果のエンコードに失敗: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
