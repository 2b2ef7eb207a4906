package catalog

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	json "github.com/goccy/go-json"

	apperrors "landscape-planner/internal/common/errors"
	"landscape-planner/internal/planner/models"
)

// ============================================================
// HTTP catalog client
// ============================================================

// wireShop and wireAsset mirror the catalog service payloads.
type wireShop struct {
	ID      string `json:"_id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Info    string `json:"info"`
}

type wireAsset struct {
	ID       string       `json:"_id"`
	Shop     *wireShop    `json:"shop"`
	Name     string       `json:"name"`
	URL      string       `json:"url"`
	Category string       `json:"category"`
	Color    string       `json:"color"`
	Price    models.Price `json:"price"`
	Width    float64      `json:"width"`
	Height   float64      `json:"height"`
}

func (w wireAsset) descriptor() models.AssetDescriptor {
	d := models.AssetDescriptor{
		ID:           w.ID,
		Name:         w.Name,
		Category:     w.Category,
		Color:        w.Color,
		Price:        w.Price,
		PreviewURL:   w.URL,
		NativeWidth:  w.Width,
		NativeHeight: w.Height,
	}
	if w.Shop != nil && w.Shop.ID != "" {
		d.Vendor = &models.Vendor{ID: w.Shop.ID, Name: w.Shop.Name, Address: w.Shop.Address, Info: w.Shop.Info}
	}
	return d
}

// HTTPClient talks to the catalog service over HTTP.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  *log.Logger
}

func NewHTTPClient(baseURL string, timeout time.Duration, logger *log.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.WithPrefix("catalog"),
	}
}

func (h *HTTPClient) List(ctx context.Context) ([]models.AssetDescriptor, error) {
	var wire []wireAsset
	if err := h.getJSON(ctx, h.baseURL+"/api/assets", &wire); err != nil {
		return nil, err
	}
	out := make([]models.AssetDescriptor, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.descriptor())
	}
	return out, nil
}

func (h *HTTPClient) Get(ctx context.Context, id string) (models.AssetDescriptor, error) {
	var wire wireAsset
	if err := h.getJSON(ctx, h.baseURL+"/api/assets/"+url.PathEscape(id), &wire); err != nil {
		return models.AssetDescriptor{}, err
	}
	return wire.descriptor(), nil
}

// Resolve fetches the descriptor and measures its preview image. A preview
// that cannot be decoded falls back to the declared size.
func (h *HTTPClient) Resolve(ctx context.Context, ref string) (models.Visual, error) {
	d, err := h.Get(ctx, ref)
	if err != nil {
		return models.Visual{}, err
	}
	v := VisualOf(d)
	if d.PreviewURL == "" {
		return v, nil
	}

	w, hgt, err := h.previewSize(ctx, d.PreviewURL)
	if err != nil {
		h.logger.Warn("preview size unavailable", "ref", ref, "err", err)
		return v, nil
	}
	v.Width, v.Height = w, hgt
	return v, nil
}

// Snapshot loads the full list into an immutable in-memory snapshot.
func (h *HTTPClient) Snapshot(ctx context.Context) (*Memory, error) {
	items, err := h.List(ctx)
	if err != nil {
		return nil, err
	}
	return NewMemory(items), nil
}

func (h *HTTPClient) previewSize(ctx context.Context, url string) (float64, float64, error) {
	if strings.HasPrefix(url, "/") {
		url = h.baseURL + url
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, 0, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("preview status %d", resp.StatusCode)
	}
	cfg, _, err := image.DecodeConfig(resp.Body)
	if err != nil {
		return 0, 0, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, fmt.Errorf("preview has empty size")
	}
	return float64(cfg.Width), float64(cfg.Height), nil
}

func (h *HTTPClient) getJSON(ctx context.Context, url string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeInternal, err, "build catalog request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeResolution, err, "catalog unreachable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.New(apperrors.ErrCodeResolution, "catalog: %s not found", url)
	case resp.StatusCode != http.StatusOK:
		return apperrors.New(apperrors.ErrCodeResolution, "catalog: status %d for %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeResolution, err, "read catalog response")
	}
	if err := json.Unmarshal(data, target); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeResolution, err, "decode catalog response")
	}
	return nil
}
