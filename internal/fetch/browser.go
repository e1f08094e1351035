package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Browser loads URLs in headless Chrome and returns the rendered body text.
// A script URL opened directly is shown as plain text, so this works for the
// bootstrap script when the provider starts fingerprinting plain clients.
type Browser struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	timeout     time.Duration
	logger      *zap.Logger
}

// NewBrowser starts an exec allocator. Call Close to release it.
func NewBrowser(timeout time.Duration, userAgent string, logger *zap.Logger) *Browser {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if userAgent != "" {
		opts = append(opts, chromedp.UserAgent(userAgent))
	}
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Browser{
		allocCtx:    allocCtx,
		allocCancel: cancel,
		timeout:     timeout,
		logger:      logger,
	}
}

// Get navigates to url and returns document.body.innerText.
func (b *Browser) Get(ctx context.Context, url string) ([]byte, error) {
	taskCtx, cancel := chromedp.NewContext(b.allocCtx, chromedp.WithLogf(b.logger.Sugar().Debugf))
	defer cancel()

	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, b.timeout)
	defer cancelTimeout()

	// Propagate caller cancellation into the browser task.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var text string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.Text("body", &text, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("browser get %s: %w", url, err)
	}
	return []byte(text), nil
}

// Close shuts down the browser process.
func (b *Browser) Close() {
	b.allocCancel()
}
