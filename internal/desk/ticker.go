package desk

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// PhotoSender delivers a rendered report.
type PhotoSender interface {
	SendPhoto(ctx context.Context, filename string, png []byte, caption string) error
}

// SendReport renders the report and hands it to sender.
func (s *Service) SendReport(ctx context.Context, sender PhotoSender) error {
	img, err := s.ReportPNG()
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	r := s.Report()
	caption := fmt.Sprintf("📊 <b>Report %s</b>\nRevenue: %s %v · Active: %d · Resolved today: %d",
		r.GeneratedOn, s.currency, r.TotalRevenue, r.ActiveCount, r.Dashboard.ResolvedToday)
	return sender.SendPhoto(ctx, "report-"+r.GeneratedOn+".png", img, caption)
}

// RunReportTicker sends the report every interval until ctx is cancelled.
// A failed send is logged and retried on the next tick.
func (s *Service) RunReportTicker(ctx context.Context, interval time.Duration, sender PhotoSender) {
	if interval <= 0 {
		return
	}
	log.Printf("⏰ Sending the report every %v", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("🛑 Report ticker stopped")
			return
		case <-ticker.C:
			log.Println("📊 Sending periodic report...")
			if err := s.SendReport(ctx, sender); err != nil {
				log.Println("⚠️  Failed to send report:", err)
			}
		}
	}
}
