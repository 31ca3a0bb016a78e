package extractor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/openlingo/openlingo-backend/internal/domain/content"
	"github.com/openlingo/openlingo-backend/internal/ingestion/textutil"
	"github.com/openlingo/openlingo-backend/internal/platform/apierr"
	"github.com/openlingo/openlingo-backend/internal/platform/logger"
)

const (
	maxFetchBytes = 8 << 20 // response cap
	maxFileBytes  = 16 << 20
)

// Extracted is the extractor output: plain text plus whatever title the
// source itself carried.
type Extracted struct {
	Text  string
	Title string
}

// Extractor turns a RawSource into plain text. Inline text passes through
// normalization only; files are read from the configured upload root; URLs
// are fetched and distilled with readability.
type Extractor struct {
	client     *http.Client
	uploadRoot string
	log        *logger.Logger
}

func New(uploadRoot string, log *logger.Logger) *Extractor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Extractor{
		client:     &http.Client{Timeout: 30 * time.Second},
		uploadRoot: uploadRoot,
		log:        log,
	}
}

// Extract dispatches on source kind. Input problems (bad kind, invalid URL,
// non-text payload) are input errors; fetch and read failures are extraction
// errors, which the job retry policy treats as transient.
func (e *Extractor) Extract(ctx context.Context, src content.RawSource) (Extracted, error) {
	switch src.Kind {
	case content.SourceText:
		return e.fromText(src)
	case content.SourceFile:
		return e.fromFile(src)
	case content.SourceURL:
		return e.fromURL(ctx, src)
	}
	return Extracted{}, apierr.Input("unsupported_source_kind", fmt.Errorf("unsupported source kind %q", src.Kind))
}

func (e *Extractor) fromText(src content.RawSource) (Extracted, error) {
	text := textutil.NormalizeWhitespace(src.Payload)
	if text == "" {
		return Extracted{}, apierr.Input("empty_text_payload", fmt.Errorf("text payload is empty"))
	}
	return Extracted{Text: text, Title: src.Title}, nil
}

// fromFile reads an uploaded file. The payload is a file reference relative
// to the upload root; path traversal outside the root is rejected.
func (e *Extractor) fromFile(src content.RawSource) (Extracted, error) {
	ref := strings.TrimSpace(src.Payload)
	if ref == "" {
		return Extracted{}, apierr.Input("empty_file_ref", fmt.Errorf("file reference is empty"))
	}
	path := filepath.Join(e.uploadRoot, filepath.Clean("/"+ref))
	if e.uploadRoot != "" && !strings.HasPrefix(path, filepath.Clean(e.uploadRoot)+string(os.PathSeparator)) {
		return Extracted{}, apierr.Input("file_ref_outside_root", fmt.Errorf("file reference escapes upload root"))
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Extracted{}, apierr.Input("file_not_found", fmt.Errorf("file %q not found", ref))
		}
		return Extracted{}, apierr.Extraction("open_upload", fmt.Errorf("open upload: %w", err))
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, maxFileBytes))
	if err != nil {
		return Extracted{}, apierr.Extraction("read_upload", fmt.Errorf("read upload: %w", err))
	}
	if !utf8.Valid(raw) {
		return Extracted{}, apierr.Input("file_not_utf8", fmt.Errorf("file %q is not valid UTF-8 text", ref))
	}

	text := string(raw)
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".html" || ext == ".htm" {
		text = e.stripHTML(text)
	}
	text = textutil.NormalizeWhitespace(text)
	if text == "" {
		return Extracted{}, apierr.Input("file_has_no_text", fmt.Errorf("file %q contains no text", ref))
	}
	title := src.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return Extracted{Text: text, Title: title}, nil
}

// fromURL fetches the page and lets readability distill the main article,
// then flattens the clean HTML to text with goquery. Network and HTTP
// failures are extraction errors so the retry policy applies.
func (e *Extractor) fromURL(ctx context.Context, src content.RawSource) (Extracted, error) {
	rawURL := strings.TrimSpace(src.Payload)
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return Extracted{}, apierr.Input("invalid_url", fmt.Errorf("invalid url %q", rawURL))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Extracted{}, apierr.Input("build_request", fmt.Errorf("build request: %w", err))
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return Extracted{}, apierr.Extraction("url_fetch", fmt.Errorf("fetch %s: %w", rawURL, err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Extracted{}, apierr.Extraction("url_status", fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return Extracted{}, apierr.Extraction("read_body", fmt.Errorf("read body: %w", err))
	}

	parser := readability.NewParser()
	article, err := parser.Parse(strings.NewReader(string(body)), parsed)
	if err != nil {
		return Extracted{}, apierr.Extraction("readability_parse", fmt.Errorf("distill %s: %w", rawURL, err))
	}

	text := e.flattenArticle(article.Content)
	if text == "" {
		// Readability found no article body; fall back to the full page text.
		text = e.stripHTML(string(body))
	}
	text = textutil.NormalizeWhitespace(text)
	if text == "" {
		return Extracted{}, apierr.Extraction("url_no_text", fmt.Errorf("no text content at %s", rawURL))
	}

	title := src.Title
	if title == "" {
		title = strings.TrimSpace(article.Title)
	}
	e.log.Debug("url extracted", "url", rawURL, "chars", len(text))
	return Extracted{Text: text, Title: title}, nil
}

// flattenArticle walks the content-bearing tags of readability's clean HTML
// and joins them paragraph-wise.
func (e *Extractor) flattenArticle(cleanHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cleanHTML))
	if err != nil {
		return ""
	}
	var parts []string
	doc.Find("h1,h2,h3,h4,h5,h6,p,li,blockquote,pre").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, "\n\n")
}

func (e *Extractor) stripHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script,style,noscript").Remove()
	return doc.Find("body").Text()
}
