package export

import (
	"context"
	"encoding/base64"
	"fmt"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

var chromeBinaries = []string{"chromium-browser", "chromium", "google-chrome", "google-chrome-stable"}

// ChromeBrowser drives a headless Chrome per call.
type ChromeBrowser struct {
	execPath string
	timeout  time.Duration
	width    int64
	height   int64
}

type ChromeOption func(*ChromeBrowser)

func WithTimeout(d time.Duration) ChromeOption {
	return func(b *ChromeBrowser) {
		b.timeout = d
	}
}

// WithExecPath skips the binary lookup.
func WithExecPath(path string) ChromeOption {
	return func(b *ChromeBrowser) {
		b.execPath = path
	}
}

// NewChromeBrowser locates a Chrome binary on PATH.
func NewChromeBrowser(opts ...ChromeOption) (*ChromeBrowser, error) {
	b := &ChromeBrowser{timeout: 30 * time.Second, width: 1280, height: 800}
	for _, opt := range opts {
		opt(b)
	}
	if b.execPath == "" {
		for _, name := range chromeBinaries {
			if p, err := exec.LookPath(name); err == nil {
				b.execPath = p
				break
			}
		}
	}
	if b.execPath == "" {
		return nil, fmt.Errorf("%w: chromium not installed", ErrPDFDependencyMissing)
	}
	return b, nil
}

func (b *ChromeBrowser) PrintPDF(ctx context.Context, html string) ([]byte, error) {
	var pdf []byte
	err := b.run(ctx, html, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		pdf, _, err = page.PrintToPDF().
			WithPrintBackground(true).
			WithPaperWidth(8.27). // A4
			WithPaperHeight(11.69).
			WithMarginTop(0.6).
			WithMarginBottom(0.6).
			WithMarginLeft(0.6).
			WithMarginRight(0.6).
			Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("export: chrome pdf generation failed: %w", err)
	}
	return pdf, nil
}

// Screenshot captures the full page as PNG.
func (b *ChromeBrowser) Screenshot(ctx context.Context, html string) ([]byte, error) {
	var shot []byte
	if err := b.run(ctx, html, chromedp.FullScreenshot(&shot, 100)); err != nil {
		return nil, fmt.Errorf("export: chrome screenshot failed: %w", err)
	}
	return shot, nil
}

func (b *ChromeBrowser) run(ctx context.Context, html string, action chromedp.Action) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(b.execPath),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.WindowSize(int(b.width), int(b.height)),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	taskCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	return chromedp.Run(taskCtx,
		chromedp.EmulateViewport(b.width, b.height),
		chromedp.Navigate(dataURL(html)),
		chromedp.WaitReady("body"),
		action,
	)
}

func dataURL(html string) string {
	return "data:text/html;charset=utf-8;base64," + base64.StdEncoding.EncodeToString([]byte(html))
}
