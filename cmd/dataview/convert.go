package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/vegasq/dataview/convert"
)

func newConvertCmd() *cobra.Command {
	var (
		outDir        string
		inferenceRows int
	)

	cmd := &cobra.Command{
		Use:   "convert <file.csv|file.xlsx>",
		Short: "Convert a CSV or Excel file to Parquet",
		Long: `Convert a CSV or Excel file to Parquet.

The output is named <YYYYmmdd_HHMMSS>_<base>.parquet and written to the
output directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := convertFile(args[0], outDir, convert.Options{InferenceRows: inferenceRows}, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "output", "o", ".", "output directory")
	cmd.Flags().IntVar(&inferenceRows, "infer-rows", convert.DefaultInferenceRows, "values inspected per column to infer its type")
	return cmd
}

func convertFile(src, outDir string, opts convert.Options, now time.Time) (string, error) {
	if !convert.Supported(src) {
		return "", fmt.Errorf("%w: %s", convert.ErrUnsupportedFormat, src)
	}

	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	t, err := convert.ReadFile(src, in, opts)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", src, err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(outDir, convert.TimestampedName(src, now))
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if err := convert.WriteParquet(out, t); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return "", fmt.Errorf("write %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return dst, nil
}
