// Package parser extracts structured complaint fields from free text pasted
// from WhatsApp, email or a manufacturer portal, using the Gemini API.
//
// Graceful degradation: if no API key is configured the parser is nil and
// every call returns "no extraction" without touching the network.
package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"svcdesk/internal/api"
	deskerrors "svcdesk/internal/errors"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

const promptTemplate = `Extract the following complaint details from this text and return as JSON:

TEXT: %q

FIELDS TO EXTRACT:
- complaintNumber
- customerName
- phoneNumber
- address
- productType (Must be one of: AC, Refrigerator, Washing Machine, Other)
- modelNumber
- serialNumber
- type (Warranty, Revenue, or Unknown)`

// Extraction is what the model returned. Any field may be empty; enum
// fields are raw strings and are validated by the caller.
type Extraction struct {
	ComplaintNumber string `json:"complaintNumber"`
	CustomerName    string `json:"customerName"`
	PhoneNumber     string `json:"phoneNumber"`
	Address         string `json:"address"`
	ProductType     string `json:"productType"`
	ModelNumber     string `json:"modelNumber"`
	SerialNumber    string `json:"serialNumber"`
	Type            string `json:"type"`
}

// Parser calls Gemini generateContent with a JSON response schema.
type Parser struct {
	apiKey  string
	model   string
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// Option customises a Parser.
type Option func(*Parser)

// WithBaseURL points the parser at another API root.
func WithBaseURL(u string) Option {
	return func(p *Parser) { p.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the shared pooled client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Parser) { p.client = c }
}

// WithTimeout bounds each call. Zero means no bound beyond the caller's
// context; the shared client's timeout does not apply to parse calls.
func WithTimeout(d time.Duration) Option {
	return func(p *Parser) { p.timeout = d }
}

// NewParser creates a Gemini-backed parser.
//
// Returns nil if apiKey is empty.
func NewParser(apiKey, model string, opts ...Option) *Parser {
	if apiKey == "" {
		log.Println("⚠️  GEMINI_API_KEY not set. Smart parse disabled.")
		return nil
	}

	p := &Parser{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		client:  api.GetUnboundedHTTPClient(),
	}
	for _, opt := range opts {
		opt(p)
	}

	log.Println("✓ Gemini smart parse configured with model", p.model)
	return p
}

// Enabled reports whether calls reach the model.
func (p *Parser) Enabled() bool {
	return p != nil
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType"`
	ResponseSchema   schema `json:"responseSchema"`
}

type schema struct {
	Type       string            `json:"type"`
	Properties map[string]schema `json:"properties,omitempty"`
	Required   []string          `json:"required,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func responseSchema() schema {
	str := schema{Type: "STRING"}
	return schema{
		Type: "OBJECT",
		Properties: map[string]schema{
			"complaintNumber": str,
			"customerName":    str,
			"phoneNumber":     str,
			"address":         str,
			"productType":     str,
			"modelNumber":     str,
			"serialNumber":    str,
			"type":            str,
		},
		Required: []string{"complaintNumber", "customerName", "phoneNumber"},
	}
}

// Parse sends text to the model once, without retry.
//
// A nil parser or blank text yields (nil, nil). Transport failures, API
// errors and output that is not the expected JSON object are returned as
// ParseError.
func (p *Parser) Parse(ctx context.Context, text string) (*Extraction, error) {
	if p == nil || strings.TrimSpace(text) == "" {
		return nil, nil
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	reqBody := generateRequest{
		Contents: []content{{Parts: []part{{Text: fmt.Sprintf(promptTemplate, text)}}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   responseSchema(),
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, deskerrors.NewParseError("failed to marshal request", err)
	}

	apiURL := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, p.model, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, deskerrors.NewParseError("failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, deskerrors.NewParseError("API request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, deskerrors.NewParseError("failed to read response", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		log.Println("  ⚠️  Gemini 429 rate limit")
		return nil, deskerrors.NewParseError("rate limited", nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, deskerrors.NewParseError(fmt.Sprintf("API error %d: %s", resp.StatusCode, string(body)), nil)
	}

	var genResp generateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return nil, deskerrors.NewParseError("failed to decode response", err)
	}
	if genResp.Error != nil {
		return nil, deskerrors.NewParseError("API error: "+genResp.Error.Message, nil)
	}
	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return nil, deskerrors.NewParseError("empty response from Gemini", nil)
	}

	var out Extraction
	if err := json.Unmarshal([]byte(genResp.Candidates[0].Content.Parts[0].Text), &out); err != nil {
		log.Println("⚠️  Failed to parse Gemini response:", err)
		return nil, deskerrors.NewParseError("model output is not a complaint object", err)
	}
	return &out, nil
}
