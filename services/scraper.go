package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/shah-aman/ai-ugc-sub000/models"
)

// ScraperClient extracts structured product data from a product page URL
// through the scraping service's extraction API.
type ScraperClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewScraperClient(baseURL, apiKey string) *ScraperClient {
	return &ScraperClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 90 * time.Second},
	}
}

type scrapeRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
	Prompt  string   `json:"prompt"`
}

// ScrapeProduct fetches name, description, price and image URLs for the
// product behind url.
func (c *ScraperClient) ScrapeProduct(ctx context.Context, url string) (*models.Product, error) {
	payload := scrapeRequest{
		URL:     url,
		Formats: []string{"extract"},
		Prompt:  "Extract the product name, description, price, and all product image URLs.",
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshalling scrape request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/scrape", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating scrape request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scraping %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading scrape response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scrape of %s failed with status %d: %s", url, resp.StatusCode, string(body))
	}

	extract := gjson.GetBytes(body, "data.extract")
	if !extract.Exists() {
		return nil, fmt.Errorf("scrape response carried no extract: %s", string(body))
	}

	product := &models.Product{
		Name:        extract.Get("name").String(),
		Description: extract.Get("description").String(),
		Price:       extract.Get("price").String(),
	}
	for _, img := range extract.Get("image_urls").Array() {
		if u := img.String(); u != "" {
			product.ImageURLs = append(product.ImageURLs, u)
		}
	}

	if product.Name == "" && product.Description == "" {
		return nil, fmt.Errorf("scrape of %s extracted no product data", url)
	}
	return product, nil
}
