// Package source 从网页抓取待翻译的正文
package source

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"z-novel-writer/internal/config"
	apperrors "z-novel-writer/pkg/errors"
	"z-novel-writer/pkg/logger"
	"z-novel-writer/pkg/tracer"
)

// contentCandidates 未配置选择器时依次尝试
var contentCandidates = []string{"article", "main", "#content", ".content", "#chapter", "body"}

// Document 抓取结果
type Document struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Fetcher 网页正文抓取器
type Fetcher struct {
	client   *resty.Client
	selector string
}

func NewFetcher(cfg *config.SourceConfig) *Fetcher {
	client := resty.New()
	client.SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryAfter(func(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
			if resp != nil && resp.StatusCode() == http.StatusTooManyRequests {
				if ra := resp.Header().Get("Retry-After"); ra != "" {
					if d, err := time.ParseDuration(ra + "s"); err == nil {
						return d, nil
					}
				}
			}
			return cfg.RetryWait, nil
		}).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		}).
		SetHeader("Accept-Charset", "utf-8").
		SetHeader("User-Agent", cfg.UserAgent).
		SetLogger(disableLogger{})
	return &Fetcher{client: client, selector: strings.TrimSpace(cfg.Selector)}
}

// Fetch 下载页面并提取正文；text/plain 直接返回原文
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Document, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("invalid source url: " + rawURL)
	}

	ctx, span := tracer.Start(ctx, "source.Fetcher.Fetch",
		trace.WithAttributes(attribute.String("http.url", u.String())))
	defer span.End()

	resp, err := f.client.R().SetContext(ctx).Get(u.String())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, apperrors.Wrap(err, apperrors.CodeSourceFetch, "failed to fetch source")
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode()))
	if resp.IsError() {
		return nil, apperrors.New(apperrors.CodeSourceFetch, "failed to fetch source").
			WithDetail(fmt.Sprintf("unexpected status %d from %s", resp.StatusCode(), u.Host))
	}

	doc := &Document{URL: u.String()}
	if strings.HasPrefix(resp.Header().Get("Content-Type"), "text/plain") {
		doc.Text = strings.TrimSpace(string(resp.Body()))
	} else {
		doc.Title, doc.Text, err = f.extract(resp.Body())
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeSourceFetch, "failed to parse source html")
		}
	}
	if doc.Text == "" {
		return nil, apperrors.New(apperrors.CodeSourceFetch, "source has no text").WithDetail(u.String())
	}

	logger.Info(ctx, "source fetched", "host", u.Host, "runes", utf8.RuneCountInString(doc.Text))
	return doc, nil
}

func (f *Fetcher) extract(body []byte) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find("script, style, noscript, nav, header, footer, img").Remove()

	selectors := contentCandidates
	if f.selector != "" {
		selectors = []string{f.selector}
	}
	for _, sel := range selectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if text := selectionText(node); text != "" {
			return title, text, nil
		}
	}
	return title, "", nil
}

// selectionText 有段落时按段落拼接，否则取全部文本
func selectionText(s *goquery.Selection) string {
	var paragraphs []string
	s.Find("p").Each(func(_ int, p *goquery.Selection) {
		if t := strings.TrimSpace(p.Text()); t != "" {
			paragraphs = append(paragraphs, t)
		}
	})
	if len(paragraphs) > 0 {
		return strings.Join(paragraphs, "\n\n")
	}
	return strings.TrimSpace(s.Text())
}

type disableLogger struct{}

func (disableLogger) Errorf(string, ...interface{}) {}
func (disableLogger) Warnf(string, ...interface{})  {}
func (disableLogger) Debugf(string, ...interface{}) {}
