package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/ytaudio/config"
	"github.com/bnema/ytaudio/internal/domain"
	"github.com/bnema/ytaudio/internal/infrastructure/logger"
	"github.com/bnema/ytaudio/internal/service"
)

func newExtractCmd() *cobra.Command {
	var cookiesFile, outPath, filename string

	cmd := &cobra.Command{
		Use:   "extract <url>",
		Short: "Run one extraction job locally and write the MP3 to disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadLocal()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger.SetLevel(cfg.LogLevel)

			req := domain.JobRequest{URL: args[0], Filename: filename}
			if cookiesFile != "" {
				data, err := os.ReadFile(cookiesFile)
				if err != nil {
					return fmt.Errorf("read cookies: %w", err)
				}
				req.Cookies = string(data)
			}

			svc, err := newExtractionService(cfg, nil, nil)
			if err != nil {
				return err
			}
			return runExtract(cmd, svc, req, outPath)
		},
	}

	cmd.Flags().StringVar(&cookiesFile, "cookies", "", "Netscape cookies file passed to yt-dlp")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default: the sanitized filename in the current directory)")
	cmd.Flags().StringVar(&filename, "filename", "", "suggested output filename")
	return cmd
}

func runExtract(cmd *cobra.Command, svc *service.ExtractionService, req domain.JobRequest, outPath string) error {
	result := svc.RunJob(cmd.Context(), req)
	if result.Err != nil {
		if result.Err.Details != "" {
			cmd.PrintErrln(result.Err.Details)
		}
		return fmt.Errorf("job %s: %s (%s)", result.JobID, result.Err.Message, result.Err.Category)
	}

	audio, err := base64.StdEncoding.DecodeString(result.AudioBase64)
	if err != nil {
		return fmt.Errorf("decode audio: %w", err)
	}

	if outPath == "" {
		outPath = result.Filename
	}
	if err := os.WriteFile(outPath, audio, 0644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(outPath), err)
	}

	length := "unknown length"
	if result.Audio != nil {
		length = domain.FormatDuration(result.Audio.DurationSeconds)
	}
	cmd.Printf("%s (%s, %s, %d attempt(s) in %s)\n",
		outPath, domain.FormatSize(result.Size), length, result.Attempts, result.Duration.Round(time.Millisecond))
	return nil
}
