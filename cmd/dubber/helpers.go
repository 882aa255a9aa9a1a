package main

import (
	"fmt"
	"strconv"
	"time"

	"dubber/internal/ipc"
)

const titleDisplayWidth = 40

func parseJobID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid job id %q", arg)
	}
	return id, nil
}

func truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}

func displayTitle(job ipc.JobItem) string {
	if job.Title != "" {
		return job.Title
	}
	return job.URL
}

func formatTimestamp(value string) string {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return t.Local().Format("2006-01-02 15:04")
}

// progressSummary renders segment progress as "translated/synthesized/total".
func progressSummary(p ipc.SegmentProgress) string {
	if p.Total == 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d/%d", p.TranslateDone, p.SynthesizeDone, p.Total)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
