// Package registry resolves token fares from the marketplace's token
// registry subgraph. A resolved denomination is cached so repeated swap jobs
// for the same contract do not re-query the indexer.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/acpsuite/settlebot/internal/domain"
)

// cacheTTL bounds how long a resolved denomination stays cached.
const cacheTTL = 10 * time.Minute

// Client is a GraphQL client for the token registry subgraph.
type Client struct {
	graphqlURL string
	apiKey     string
	httpClient *http.Client
	cache      domain.FareCache // optional
	logger     *slog.Logger
}

// NewClient creates a registry client for the given subgraph endpoint. cache
// may be nil, in which case every resolution hits the indexer.
func NewClient(graphqlURL, apiKey string, cache domain.FareCache, logger *slog.Logger) *Client {
	return &Client{
		graphqlURL: graphqlURL,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache:  cache,
		logger: logger.With(slog.String("component", "registry")),
	}
}

// graphqlRequest is the standard GraphQL request envelope.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphqlResponse is the standard GraphQL response envelope.
type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// ResolveFare returns a Fare of the given amount denominated in the token
// deployed at contract. Unknown contracts yield domain.ErrFareUnavailable.
func (c *Client) ResolveFare(ctx context.Context, contract common.Address, amount float64) (domain.Fare, error) {
	if c.cache != nil {
		tok, err := c.cache.GetToken(ctx, contract)
		if err == nil {
			return domain.Fare{Amount: amount, Denomination: tok}, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			c.logger.WarnContext(ctx, "fare cache lookup failed",
				slog.String("contract", contract.Hex()),
				slog.String("error", err.Error()),
			)
		}
	}

	tok, err := c.fetchToken(ctx, contract)
	if err != nil {
		return domain.Fare{}, err
	}

	if c.cache != nil {
		if err := c.cache.SetToken(ctx, contract, tok, cacheTTL); err != nil {
			c.logger.WarnContext(ctx, "fare cache store failed",
				slog.String("contract", contract.Hex()),
				slog.String("error", err.Error()),
			)
		}
	}

	return domain.Fare{Amount: amount, Denomination: tok}, nil
}

// fetchToken queries the registry subgraph for the token at contract.
func (c *Client) fetchToken(ctx context.Context, contract common.Address) (domain.Token, error) {
	query := `
		query Token($id: ID!) {
			token(id: $id) {
				id
				symbol
				decimals
			}
		}
	`

	variables := map[string]any{
		"id": strings.ToLower(contract.Hex()),
	}

	respData, err := c.doQuery(ctx, query, variables)
	if err != nil {
		return domain.Token{}, fmt.Errorf("registry: fetch token: %w", err)
	}

	var result struct {
		Token *struct {
			ID       string `json:"id"`
			Symbol   string `json:"symbol"`
			Decimals int    `json:"decimals"`
		} `json:"token"`
	}

	if err := json.Unmarshal(respData, &result); err != nil {
		return domain.Token{}, fmt.Errorf("registry: decode token: %w", err)
	}
	if result.Token == nil || result.Token.Symbol == "" {
		return domain.Token{}, fmt.Errorf("registry: token %s: %w", contract.Hex(), domain.ErrFareUnavailable)
	}

	return domain.Token{
		Symbol:   result.Token.Symbol,
		Contract: contract,
		Decimals: result.Token.Decimals,
	}, nil
}

// doQuery executes a GraphQL query against the registry endpoint and returns
// the raw "data" field from the response.
func (c *Client) doQuery(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	reqBody := graphqlRequest{
		Query:     query,
		Variables: variables,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var gqlResp graphqlResponse
	if err := json.Unmarshal(body, &gqlResp); err != nil {
		return nil, fmt.Errorf("decode graphql response: %w", err)
	}

	if len(gqlResp.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %s", gqlResp.Errors[0].Message)
	}

	return gqlResp.Data, nil
}

var _ domain.FareResolver = (*Client)(nil)
