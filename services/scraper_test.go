package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestScrapeProduct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/scrape" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var payload scrapeRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decoding scrape payload: %v", err)
		}
		if payload.URL != "https://shop.example/widget" {
			t.Errorf("url = %q", payload.URL)
		}
		if len(payload.Formats) != 1 || payload.Formats[0] != "extract" {
			t.Errorf("formats = %v, want [extract]", payload.Formats)
		}

		fmt.Fprint(w, `{"data": {"extract": {
			"name": "Widget",
			"description": "A very good widget.",
			"price": "$29",
			"image_urls": ["https://shop.example/a.jpg", "", "https://shop.example/b.jpg"]
		}}}`)
	}))
	defer srv.Close()

	product, err := NewScraperClient(srv.URL, "key").ScrapeProduct(context.Background(), "https://shop.example/widget")
	if err != nil {
		t.Fatalf("ScrapeProduct failed: %v", err)
	}
	if product.Name != "Widget" || product.Price != "$29" {
		t.Errorf("product = %+v", product)
	}
	if len(product.ImageURLs) != 2 {
		t.Errorf("image urls = %v, want empty entries dropped", product.ImageURLs)
	}
	if product.PrimaryImage() != "https://shop.example/a.jpg" {
		t.Errorf("primary image = %q", product.PrimaryImage())
	}
}

func TestScrapeProductNoExtract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": {}}`)
	}))
	defer srv.Close()

	if _, err := NewScraperClient(srv.URL, "key").ScrapeProduct(context.Background(), "https://shop.example/widget"); err == nil {
		t.Fatal("expected error when the response has no extract")
	}
}

func TestScrapeProductEmptyExtract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": {"extract": {"name": "", "description": ""}}}`)
	}))
	defer srv.Close()

	if _, err := NewScraperClient(srv.URL, "key").ScrapeProduct(context.Background(), "https://shop.example/widget"); err == nil {
		t.Fatal("expected error when no product data was extracted")
	}
}
