// Command visitor plays one synthetic landing page visit against a running
// backend: page_view, an optional link click, then page unload.
package main

import (
	"flag"
	"fmt"
	lg "log"
	"os"
	"time"

	"go.uber.org/zap"

	"linkpage-backend/pkg/logger"
	"linkpage-backend/pkg/tracker"
)

const defaultUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 " +
	"(KHTML, like Gecko) Mobile/15E148 Instagram 300.0.0.0"

func main() {
	endpoint := flag.String("endpoint", "http://localhost:8080/api/track", "ingest endpoint")
	userAgent := flag.String("ua", defaultUA, "User-Agent header")
	city := flag.String("city", "Berlin", "visitor city")
	country := flag.String("country", "Germany", "visitor country")
	referrer := flag.String("referrer", "", "document referrer")
	link := flag.String("link", "", "link name to click; empty bounces")
	linkURL := flag.String("link-url", "https://example.com", "clicked link url")
	dwell := flag.Duration("dwell", 2*time.Second, "time on page before the click or unload")
	visits := flag.Int("visits", 1, "number of visits by the same visitor")
	timeout := flag.Duration("timeout", 10*time.Second, "per request timeout")
	flag.Parse()

	log := logger.New(os.Getenv("ENV"), logger.FileOptions{})
	defer func() {
		if err := log.Sync(); err != nil {
			lg.Printf("ERROR: failed to sync zap logger: %v\n", err)
		}
	}()

	cfg := tracker.DefaultDispatcherConfig()
	cfg.SendTimeout = *timeout
	dispatcher := tracker.NewDispatcher(tracker.NewClient(*endpoint, *userAgent, *timeout), log, cfg)
	if err := dispatcher.Start(); err != nil {
		log.Fatal("failed to start dispatcher", zap.Error(err))
	}

	store := tracker.NewMemoryStore()
	for i := 0; i < *visits; i++ {
		visit(dispatcher, store, visitOptions{
			city:     *city,
			country:  *country,
			referrer: *referrer,
			link:     *link,
			linkURL:  *linkURL,
			dwell:    *dwell,
		}, log)
	}

	if err := dispatcher.Stop(); err != nil {
		log.Error("dispatcher did not drain", zap.Error(err))
	}

	stats := dispatcher.Stats()
	log.Info("visit finished",
		zap.Int64("sent", stats.Sent),
		zap.Int64("failed", stats.Failed),
		zap.Int64("dropped", stats.Dropped),
	)
	if stats.Failed > 0 || stats.Dropped > 0 {
		fmt.Fprintln(os.Stderr, "some events were not delivered")
		os.Exit(1)
	}
}

type visitOptions struct {
	city, country, referrer string
	link, linkURL           string
	dwell                   time.Duration
}

func visit(em tracker.Emitter, store tracker.KeyValueStore, opts visitOptions, log *zap.Logger) {
	v := tracker.Identify(store, time.Now())
	log.Info("visiting",
		zap.String("visitor_id", v.VisitorID),
		zap.Bool("new", v.IsNew),
		zap.Int("visit_count", v.VisitCount),
	)

	base := map[string]interface{}{
		"visitorId":    v.VisitorID,
		"isNewVisitor": v.IsNew,
		"visitCount":   v.VisitCount,
		"location": map[string]interface{}{
			"city":    opts.city,
			"country": opts.country,
		},
		"referrer": opts.referrer,
	}

	em.Emit(withFields("page_view", base, nil))

	session := tracker.NewSession(em, tracker.WithBaseData(base))
	time.Sleep(opts.dwell)

	if opts.link != "" {
		session.Interact()
		em.Emit(withFields("link_click", base, map[string]interface{}{
			"linkName": opts.link,
			"linkUrl":  opts.linkURL,
		}))
	}

	session.Unload()
}

func withFields(eventType string, base, fields map[string]interface{}) tracker.Submission {
	data := make(map[string]interface{}, len(base)+len(fields))
	for k, v := range base {
		data[k] = v
	}
	for k, v := range fields {
		data[k] = v
	}
	return tracker.Submission{Type: eventType, Data: data}
}
