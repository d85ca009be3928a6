package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ai-assistant-be/pkg/store"
)

const defaultSerperEndpoint = "https://google.serper.dev/search"

// SerperSearcher implements WebSearcher against the Serper search API.
type SerperSearcher struct {
	APIKey   string
	Endpoint string
	Client   *http.Client
}

var _ WebSearcher = &SerperSearcher{}

func NewSerperSearcher(apiKey string, endpoint string) *SerperSearcher {
	if endpoint == "" {
		endpoint = defaultSerperEndpoint
	}
	return &SerperSearcher{
		APIKey:   apiKey,
		Endpoint: endpoint,
		Client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type serperRequest struct {
	Query string `json:"q"`
	Num   int    `json:"num,omitempty"`
}

type serperResponse struct {
	Organic []struct {
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
		Position int    `json:"position"`
	} `json:"organic"`
}

func (s *SerperSearcher) Search(ctx context.Context, query string, k int) ([]store.Document, error) {
	if k <= 0 {
		k = 5
	}

	payload, err := json.Marshal(serperRequest{Query: query, Num: k})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.Endpoint, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", s.APIKey)

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web search request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("web search error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var parsed serperResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	docs := make([]store.Document, 0, len(parsed.Organic))
	for i, r := range parsed.Organic {
		if i >= k {
			break
		}
		// Position starts at 1; earlier results score higher
		score := float32(1.0)
		if r.Position > 0 {
			score = 1.0 / float32(r.Position)
		}
		docs = append(docs, store.Document{
			ID:      r.Link,
			Title:   r.Title,
			Content: r.Snippet,
			Source:  r.Link,
			Score:   score,
		})
	}

	return docs, nil
}
