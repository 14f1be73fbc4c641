package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mangaforge/mangaforge/internal/domain"
	"github.com/mangaforge/mangaforge/internal/imaging"
)

// SidecarConfig holds the connection settings for the model sidecar, the
// process hosting the detection, OCR, and inpainting models.
type SidecarConfig struct {
	BaseURL string
	Timeout time.Duration
}

// SidecarClient talks to the model sidecar over HTTP with JSON bodies and
// base64-encoded PNG image payloads. One client wraps one inference
// session, so all calls go through a size-one gate.
type SidecarClient struct {
	baseURL    string
	httpClient *http.Client
	gate       *Gate
	logger     zerolog.Logger
}

// NewSidecarClient creates a client for the model sidecar.
func NewSidecarClient(cfg SidecarConfig, logger zerolog.Logger) *SidecarClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &SidecarClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		gate:       NewGate(),
		logger:     logger,
	}
}

type detectRequest struct {
	Image               string  `json:"image"`
	ConfidenceThreshold float64 `json:"confidenceThreshold"`
	NMSThreshold        float64 `json:"nmsThreshold"`
}

type detectResponse struct {
	Blocks []struct {
		X          float64 `json:"x"`
		Y          float64 `json:"y"`
		Width      float64 `json:"width"`
		Height     float64 `json:"height"`
		Confidence float64 `json:"confidence"`
	} `json:"blocks"`
	SegmentationMask string `json:"segmentationMask"`
}

// Detect runs region detection on a page image. Returned blocks carry only
// geometry and confidence; text fields stay empty for later stages.
func (c *SidecarClient) Detect(ctx context.Context, img image.Image, opts DetectOptions) (DetectResult, error) {
	encoded, err := imaging.EncodePNG(img)
	if err != nil {
		return DetectResult{}, err
	}
	req := detectRequest{
		Image:               base64.StdEncoding.EncodeToString(encoded),
		ConfidenceThreshold: clampUnit(opts.ConfidenceThreshold),
		NMSThreshold:        clampUnit(opts.NMSThreshold),
	}

	var resp detectResponse
	if err := c.post(ctx, "/detect", req, &resp); err != nil {
		return DetectResult{}, err
	}

	result := DetectResult{Blocks: make([]domain.TextBlock, 0, len(resp.Blocks))}
	for _, b := range resp.Blocks {
		result.Blocks = append(result.Blocks, domain.TextBlock{
			X: b.X, Y: b.Y, Width: b.Width, Height: b.Height,
			Confidence: b.Confidence,
		})
	}
	mask, err := decodeBase64Image(resp.SegmentationMask)
	if err != nil {
		return DetectResult{}, err
	}
	result.SegmentationMask = mask
	return result, nil
}

type ocrRequest struct {
	Image string `json:"image"`
}

type ocrResponse struct {
	Text string `json:"text"`
}

// Recognize extracts the text of one cropped block image.
func (c *SidecarClient) Recognize(ctx context.Context, crop image.Image) (string, error) {
	encoded, err := imaging.EncodePNG(crop)
	if err != nil {
		return "", err
	}
	var resp ocrResponse
	if err := c.post(ctx, "/ocr", ocrRequest{Image: base64.StdEncoding.EncodeToString(encoded)}, &resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}

type inpaintRequest struct {
	Image            string `json:"image"`
	Mask             string `json:"mask"`
	DilateKernelSize int    `json:"dilateKernelSize"`
	ErodeDistance    int    `json:"erodeDistance"`
}

type inpaintResponse struct {
	Image string `json:"image"`
}

// Inpaint fills the masked pixels of img.
func (c *SidecarClient) Inpaint(ctx context.Context, img, mask image.Image, opts MorphologyOptions) (image.Image, error) {
	encodedImage, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, err
	}
	encodedMask, err := imaging.EncodePNG(mask)
	if err != nil {
		return nil, err
	}
	req := inpaintRequest{
		Image:            base64.StdEncoding.EncodeToString(encodedImage),
		Mask:             base64.StdEncoding.EncodeToString(encodedMask),
		DilateKernelSize: opts.DilateKernelSize,
		ErodeDistance:    opts.ErodeDistance,
	}
	var resp inpaintResponse
	if err := c.post(ctx, "/inpaint", req, &resp); err != nil {
		return nil, err
	}
	return decodeBase64Image(resp.Image)
}

// CancelPipeline forwards a best-effort cancellation signal to the sidecar.
// The sidecar may ignore it; a call already mid-inference runs to
// completion. Errors are reported but callers are expected to ignore them.
func (c *SidecarClient) CancelPipeline(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/cancel", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// post serializes a request through the session gate: the sidecar hosts a
// stateful execution context that must not be invoked concurrently.
func (c *SidecarClient) post(ctx context.Context, path string, payload, out any) error {
	return c.gate.Do(ctx, func() error {
		body, err := json.Marshal(payload)
		if err != nil {
			return domain.AdapterError("marshal request", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return domain.AdapterError("build request", err)
		}
		req.Header.Set("Content-Type", "application/json")

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return domain.AdapterError(fmt.Sprintf("call %s", path), err)
		}
		defer resp.Body.Close()

		c.logger.Debug().
			Str("path", path).
			Int("status", resp.StatusCode).
			Dur("duration", time.Since(start)).
			Msg("Sidecar call completed")

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			respBody, _ := io.ReadAll(resp.Body)
			return domain.AdapterError(fmt.Sprintf("call %s", path), &StatusError{
				StatusCode: resp.StatusCode,
				Body:       string(respBody),
			})
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return domain.AdapterError(fmt.Sprintf("decode %s response", path), err)
		}
		return nil
	})
}

func decodeBase64Image(data string) (image.Image, error) {
	if data == "" {
		return nil, domain.AdapterError("response carries no image payload", nil)
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, domain.DecodeError("decode base64 image", err)
	}
	return imaging.Decode(raw)
}
