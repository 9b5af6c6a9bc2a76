package love

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// The four copywriting tools are opaque request/response pairs; the backend
// owns the generation, this side owns only input validation and transport.

// ScriptInput requests a short-video or livestream script.
type ScriptInput struct {
	Keyword  string   `json:"keyword"`
	Price    *float64 `json:"price,omitempty"`
	Audience string   `json:"audience,omitempty"`
	Scene    string   `json:"scene,omitempty"`
	Style    string   `json:"style"` // "short" or "live"
}

// ScriptResult is the generated script text.
type ScriptResult struct {
	Text string `json:"text"`
}

// TitleInput requests a batch of product titles.
type TitleInput struct {
	Keyword string `json:"keyword"`
	Style   string `json:"style,omitempty"`
}

// TitleResult is the generated title batch.
type TitleResult struct {
	Titles []string `json:"titles"`
}

// CommissionInput requests an earnings estimate.
type CommissionInput struct {
	Price          float64  `json:"price"`
	CommissionRate float64  `json:"commissionRate"`
	PlatformRate   *float64 `json:"platformRate,omitempty"`
}

// PriceComparison is one alternative price point in the estimate.
type PriceComparison struct {
	Price      float64 `json:"price"`
	Commission float64 `json:"commission"`
}

// CommissionResult is the computed estimate with price comparisons.
type CommissionResult struct {
	Commission   float64           `json:"commission"`
	Comparisons  []PriceComparison `json:"comparisons"`
	SellingPoint string            `json:"sellingPoint"`
}

// RefineInput requests a compliance review of sales copy.
type RefineInput struct {
	Text string `json:"text"`
}

// RefineResult is the refined copy with flagged risks and safe rewrites.
type RefineResult struct {
	SummaryLine   string   `json:"summaryLine"`
	SellingPoints []string `json:"sellingPoints"`
	Risks         []string `json:"risks"`
	Suggestions   []string `json:"suggestions"`
	SafeRewrites  []string `json:"safeRewrites"`
}

// GenerateScript calls the script tool.
func (c *Client) GenerateScript(ctx context.Context, tok string, in ScriptInput) (ScriptResult, error) {
	if tok == "" {
		return ScriptResult{}, ErrMissingToken
	}
	if strings.TrimSpace(in.Keyword) == "" {
		return ScriptResult{}, errors.New("missing product keyword")
	}
	var out ScriptResult
	err := c.do(ctx, http.MethodPost, "/api/tool/script", creds{token: tok}, in, &out)
	return out, err
}

// GenerateTitle calls the title tool.
func (c *Client) GenerateTitle(ctx context.Context, tok string, in TitleInput) (TitleResult, error) {
	if tok == "" {
		return TitleResult{}, ErrMissingToken
	}
	if strings.TrimSpace(in.Keyword) == "" {
		return TitleResult{}, errors.New("missing product keyword")
	}
	var out TitleResult
	err := c.do(ctx, http.MethodPost, "/api/tool/title", creds{token: tok}, in, &out)
	return out, err
}

// CalculateCommission calls the commission tool.
func (c *Client) CalculateCommission(ctx context.Context, tok string, in CommissionInput) (CommissionResult, error) {
	if tok == "" {
		return CommissionResult{}, ErrMissingToken
	}
	if in.Price <= 0 || in.CommissionRate <= 0 {
		return CommissionResult{}, errors.New("missing price or commission rate")
	}
	var out CommissionResult
	err := c.do(ctx, http.MethodPost, "/api/tool/commission", creds{token: tok}, in, &out)
	return out, err
}

// RefineCopy calls the phrasing refinement tool.
func (c *Client) RefineCopy(ctx context.Context, tok string, in RefineInput) (RefineResult, error) {
	if tok == "" {
		return RefineResult{}, ErrMissingToken
	}
	if strings.TrimSpace(in.Text) == "" {
		return RefineResult{}, errors.New("missing copy text")
	}
	var out RefineResult
	err := c.do(ctx, http.MethodPost, "/api/tool/refine", creds{token: tok}, in, &out)
	return out, err
}
