package proxy

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"

	"landscape-planner/internal/common/middleware"
)

// ============================================================
// Proxy
// ============================================================

// forwardedHeaders are copied from the incoming request to the upstream.
// The user header is not among them: only an identity accepted by
// middleware.TrustedUser is passed on.
var forwardedHeaders = []string{"Authorization", "Accept"}

// Proxy forwards gateway requests to a backend service.
type Proxy struct {
	client *http.Client
	logger *log.Logger
}

func New(timeout time.Duration, logger *log.Logger) *Proxy {
	return &Proxy{
		client: &http.Client{Timeout: timeout},
		logger: logger.WithPrefix("proxy"),
	}
}

// Prefix forwards every request under the route to baseURL, replacing
// stripPrefix in the path and keeping the query string.
func (p *Proxy) Prefix(baseURL, stripPrefix string) fiber.Handler {
	return func(c fiber.Ctx) error {
		path := strings.TrimPrefix(c.Path(), stripPrefix)
		target := strings.TrimRight(baseURL, "/") + path
		if qs := string(c.Request().URI().QueryString()); qs != "" {
			target += "?" + qs
		}
		return p.Forward(c, target)
	}
}

// Forward проксирует любой метод с учетом multipart/raw.
func (p *Proxy) Forward(c fiber.Ctx, targetURL string) error {
	p.logger.Debug("forward", "method", c.Method(), "path", c.Path(), "target", targetURL, "bytes", len(c.Body()))

	contentType := c.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		return p.sendMultipart(c, targetURL)
	}
	return p.send(c, targetURL, contentType, bytes.NewReader(c.Body()))
}

func (p *Proxy) send(c fiber.Ctx, targetURL, contentType string, body io.Reader) error {
	req, err := http.NewRequestWithContext(c.Context(), c.Method(), targetURL, body)
	if err != nil {
		p.logger.Error("build request", "err", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "proxy failed"})
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, h := range forwardedHeaders {
		if v := c.Get(h); v != "" {
			req.Header.Set(h, v)
		}
	}
	if user := middleware.UserID(c); user != "" {
		req.Header.Set(middleware.UserHeader, user)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Error("upstream unreachable", "target", targetURL, "err", err)
		return c.Status(http.StatusBadGateway).JSON(fiber.Map{"error": "failed to reach upstream service"})
	}
	defer resp.Body.Close()

	return p.copyResponse(c, resp)
}

func (p *Proxy) sendMultipart(c fiber.Ctx, targetURL string) error {
	form, err := c.MultipartForm()
	if err != nil {
		p.logger.Warn("parse multipart", "err", err)
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid multipart data"})
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for key, files := range form.File {
		for _, fileHeader := range files {
			if err := copyPart(writer, key, fileHeader.Filename, fileHeader.Header.Get("Content-Type"), fileHeader.Open); err != nil {
				p.logger.Warn("skip multipart file", "file", fileHeader.Filename, "err", err)
			}
		}
	}
	for key, values := range form.Value {
		for _, value := range values {
			_ = writer.WriteField(key, value)
		}
	}
	if err := writer.Close(); err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "proxy failed"})
	}

	return p.send(c, targetURL, writer.FormDataContentType(), body)
}

func copyPart(w *multipart.Writer, field, filename, contentType string, open func() (multipart.File, error)) error {
	file, err := open()
	if err != nil {
		return err
	}
	defer file.Close()

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, filename))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, file)
	return err
}

func (p *Proxy) copyResponse(c fiber.Ctx, resp *http.Response) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		p.logger.Error("read upstream response", "err", err)
		return c.Status(http.StatusBadGateway).JSON(fiber.Map{"error": "invalid upstream response"})
	}

	for key, values := range resp.Header {
		if key == "Content-Length" || key == "Transfer-Encoding" {
			continue
		}
		if len(values) > 0 {
			c.Set(key, values[0])
		}
	}

	c.Status(resp.StatusCode)
	return c.Send(data)
}
