package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/nft-marketplace/backend/internal/models"
	"go.uber.org/zap"
)

// maxErrorBody caps how much of a failed response is quoted in the error.
const maxErrorBody = 4 << 10

// PinataClient uploads image bytes to the Pinata pinning API.
type PinataClient struct {
	baseURL    string
	apiKey     string
	secretKey  string
	httpClient *http.Client
	log        *zap.Logger
}

func NewPinataClient(baseURL, apiKey, secretKey string, timeout time.Duration, log *zap.Logger) *PinataClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &PinataClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

// Upload pins data and returns its content identifier.
func (c *PinataClient) Upload(ctx context.Context, name string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty file", models.ErrValidationFailed)
	}
	if name == "" {
		name = "upload"
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrUploadFailed, err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrUploadFailed, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrUploadFailed, err)
	}

	url := fmt.Sprintf("%s/pinning/pinFileToIPFS", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrUploadFailed, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("pinata_api_key", c.apiKey)
	req.Header.Set("pinata_secret_api_key", c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: pinning service unavailable: %v", models.ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(b))
		if msg == "" {
			msg = resp.Status
		}
		return "", fmt.Errorf("%w: pinning service returned %d: %s", models.ErrUploadFailed, resp.StatusCode, msg)
	}

	var result pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", models.ErrUploadFailed, err)
	}
	if result.IpfsHash == "" {
		return "", fmt.Errorf("%w: pinning service returned empty hash", models.ErrUploadFailed)
	}

	c.log.Info("file pinned",
		zap.String("name", name),
		zap.String("cid", result.IpfsHash),
		zap.Int64("size", result.PinSize),
	)
	return result.IpfsHash, nil
}
