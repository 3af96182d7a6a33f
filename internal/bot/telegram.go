package bot

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"news-stock-explorer/internal/domain"

	tele "gopkg.in/telebot.v3"
)

const outlookWindowDays = 30

type SummaryProvider interface {
	GetSummary(ctx context.Context, ticker string, from, to time.Time) (*domain.Summary, error)
}

type MetricsSource interface {
	Metrics(ctx context.Context) (*domain.ModelMetrics, error)
}

func StartTelegramBot(summaries SummaryProvider, metrics MetricsSource) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/outlook", func(c tele.Context) error {
		args := c.Args()
		if len(args) == 0 {
			return c.Send("Usage: /outlook AAPL")
		}
		ticker := strings.ToUpper(args[0])
		to := domain.DateOf(time.Now().UTC())
		from := to.AddDate(0, 0, -outlookWindowDays)
		summary, err := summaries.GetSummary(context.Background(), ticker, from, to)
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching outlook for %s: %v", ticker, err))
		}
		return c.Send(formatOutlook(summary))
	})

	b.Handle("/metrics", func(c tele.Context) error {
		m, err := metrics.Metrics(context.Background())
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching model metrics: %v", err))
		}
		if m == nil {
			return c.Send("No trained model available yet.")
		}
		return c.Send(formatMetrics(m))
	})

	log.Println("Telegram bot started")
	go b.Start()
}

func formatOutlook(s *domain.Summary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s outlook (%s to %s)\n", s.Ticker,
		s.StartDate.Format("2006-01-02"), s.EndDate.Format("2006-01-02"))
	fmt.Fprintf(&sb, "Articles: %d\n", s.NArticles)
	fmt.Fprintf(&sb, "Avg sentiment: %.2f\n", s.AvgSentiment)
	if len(s.PriceSeries) > 0 {
		fmt.Fprintf(&sb, "Last close: $%.2f\n", s.PriceSeries[len(s.PriceSeries)-1].Close)
	}
	if s.ModelInsights != nil {
		sb.WriteString(s.ModelInsights.Comment)
	} else {
		sb.WriteString("No model insight available for this window.")
	}
	return sb.String()
}

func formatMetrics(m *domain.ModelMetrics) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Active model: %s\n", m.ModelType)
	fmt.Fprintf(&sb, "Accuracy: %.3f\n", m.Accuracy)
	fmt.Fprintf(&sb, "Balanced accuracy: %.3f\n", m.BalancedAccuracy)
	if m.RocAUC != nil {
		fmt.Fprintf(&sb, "ROC AUC: %.3f\n", *m.RocAUC)
	} else {
		sb.WriteString("ROC AUC: n/a\n")
	}
	fmt.Fprintf(&sb, "Test rows: %d", m.NTest)
	return sb.String()
}
