package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/voskpaul/clipwizard/config"
	"github.com/voskpaul/clipwizard/internal/analyze"
	"github.com/voskpaul/clipwizard/internal/events"
	"github.com/voskpaul/clipwizard/internal/media"
	"github.com/voskpaul/clipwizard/internal/pipeline"
	"github.com/voskpaul/clipwizard/internal/storage"
	"github.com/voskpaul/clipwizard/internal/store"
	"github.com/voskpaul/clipwizard/internal/transcribe"
	"github.com/voskpaul/clipwizard/models"
)

func newProcessCmd() *cobra.Command {
	var (
		tone         string
		duration     int
		customPrompt string
		outputDir    string
	)

	cmd := &cobra.Command{
		Use:   "process <video-file>",
		Short: "Process a local video into clips without running the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(args[0], tone, duration, customPrompt, outputDir)
		},
	}

	cmd.Flags().StringVar(&tone, "tone", "", "target tone for highlight selection")
	cmd.Flags().IntVar(&duration, "duration", 0, "target clip duration in seconds")
	cmd.Flags().StringVar(&customPrompt, "prompt", "", "additional analyzer instructions")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "./clipwizard-out", "directory for generated artifacts")
	return cmd
}

func runProcess(videoFile, tone string, duration int, customPrompt, outputDir string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.GroqAPIKey == "" {
		return fmt.Errorf("GROQ_API_KEY is required")
	}
	log := config.NewLogger(cfg.LogLevel, false)

	st := store.NewMemoryStore()
	artifacts, err := storage.NewLocalStore(outputDir)
	if err != nil {
		return err
	}

	bus := events.NewBus(log)
	toolkit := media.New(cfg.FFmpegPath, cfg.FFprobePath, log)
	transcriber := transcribe.New(cfg.TranscribeBaseURL, cfg.GroqAPIKey, cfg.TranscribeModel, log)
	analyzer, err := analyze.NewGroqAnalyzer(cfg.GroqAPIKey, cfg.GroqModel, log)
	if err != nil {
		return err
	}
	orch := pipeline.NewOrchestrator(st, artifacts, toolkit, transcriber, analyzer, bus, log, cfg.WorkDir)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RunTimeout)
	defer cancel()

	filename := filepath.Base(videoFile)
	video := models.Video{
		ID:               uuid.New(),
		Title:            filename,
		OriginalFilename: filename,
		Status:           models.VideoStatusUploaded,
	}
	video.StoragePath = fmt.Sprintf("sources/%s/%s", video.ID, filename)
	if err := st.CreateVideo(ctx, &video); err != nil {
		return err
	}
	if err := artifacts.Put(ctx, videoFile, video.StoragePath, "video/mp4"); err != nil {
		return err
	}

	run := models.ProcessingRun{
		ID:      uuid.New(),
		VideoID: video.ID,
		State:   models.RunStateQueued,
		Options: models.RunOptions{
			Tone:              tone,
			TargetClipSeconds: duration,
			CustomPrompt:      customPrompt,
		},
	}
	if err := st.CreateRun(ctx, &run); err != nil {
		return err
	}

	orch.Execute(ctx, run, nil)

	final, err := st.GetRun(ctx, run.ID)
	if err != nil {
		return err
	}
	if final.State == models.RunStateFailed {
		kind := ""
		if final.ErrorKind != nil {
			kind = *final.ErrorKind
		}
		msg := ""
		if final.ErrorMessage != nil {
			msg = *final.ErrorMessage
		}
		return fmt.Errorf("run failed (%s): %s", kind, msg)
	}

	fmt.Printf("Run %s finished: %s\n", final.ID, final.State)
	if final.Summary != nil {
		fmt.Printf("Summary: %s\n", *final.Summary)
	}
	clips, err := st.ListClipsByVideo(ctx, video.ID)
	if err != nil {
		return err
	}
	for _, clip := range clips {
		fmt.Printf("  %-30s [%7.2fs - %7.2fs]  %s\n", clip.Title, clip.StartTime, clip.EndTime, artifacts.PublicRef(clip.StoragePath))
	}
	for _, seg := range final.FailedSegments {
		fmt.Printf("  FAILED %-23s [%7.2fs - %7.2fs]  %s\n", seg.Title, seg.StartTime, seg.EndTime, seg.ErrorKind)
	}
	return nil
}
