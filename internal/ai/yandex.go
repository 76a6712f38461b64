package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// YandexProvider calls the YandexGPT foundation models completion API.
type YandexProvider struct {
	BaseURL     string
	APIKey      string
	FolderID    string
	Model       string
	Temperature float64
	MaxTokens   int
	Client      *http.Client
}

type yandexMsg struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type yandexReq struct {
	ModelURI          string `json:"modelUri"`
	CompletionOptions struct {
		Stream      bool    `json:"stream"`
		Temperature float64 `json:"temperature"`
		MaxTokens   string  `json:"maxTokens"`
	} `json:"completionOptions"`
	Messages []yandexMsg `json:"messages"`
}

type yandexResp struct {
	Result struct {
		Alternatives []struct {
			Message yandexMsg `json:"message"`
			Status  string    `json:"status"`
		} `json:"alternatives"`
	} `json:"result"`
}

func NewYandexProvider(baseURL, apiKey, folderID, model string, timeout time.Duration) *YandexProvider {
	if baseURL == "" {
		baseURL = "https://llm.api.cloud.yandex.net/foundationModels/v1"
	}
	if model == "" {
		model = "yandexgpt-lite"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &YandexProvider{
		BaseURL:     baseURL,
		APIKey:      apiKey,
		FolderID:    folderID,
		Model:       model,
		Temperature: 0.6,
		MaxTokens:   2000,
		Client:      &http.Client{Timeout: timeout},
	}
}

func (p *YandexProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if p.Client == nil {
		return "", errors.New("yandexgpt: http client is nil")
	}
	if strings.TrimSpace(p.APIKey) == "" || strings.TrimSpace(p.FolderID) == "" {
		return "", errors.New("yandexgpt: api key and folder id are required")
	}

	var reqBody yandexReq
	reqBody.ModelURI = fmt.Sprintf("gpt://%s/%s/latest", p.FolderID, p.Model)
	reqBody.CompletionOptions.Temperature = p.Temperature
	reqBody.CompletionOptions.MaxTokens = fmt.Sprint(p.MaxTokens)
	for _, m := range messages {
		reqBody.Messages = append(reqBody.Messages, yandexMsg{Role: m.Role, Text: m.Content})
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := strings.TrimRight(p.BaseURL, "/") + "/completion"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Api-Key "+p.APIKey)
	req.Header.Set("x-folder-id", p.FolderID)
	req.Header.Set("x-client-request-id", uuid.NewString())

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusError("yandexgpt", resp)
	}

	var decoded yandexResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if len(decoded.Result.Alternatives) == 0 {
		return "", errors.New("yandexgpt: empty response")
	}
	return decoded.Result.Alternatives[0].Message.Text, nil
}
