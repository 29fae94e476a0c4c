package blockcypher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"anarchy.ttfm/storefront/blockchains"
	"anarchy.ttfm/storefront/decimal"
	"anarchy.ttfm/storefront/utils"
)

const DefaultUrl = "https://api.blockcypher.com"

// Responses above this size are treated as garbage
const maxBodySize = 4 << 20

// Config holds the configuration of a block explorer client.
type Config struct {
	// Base URL without the /v1 suffix
	// Example: https://api.blockcypher.com
	Url string
	// Optional API token, raises the rate limit
	Token string
	// Confirmations reported above this value are clamped
	ConfirmationCap int
	// HTTP Client to use
	Client *http.Client
}

type Checker struct {
	url             string
	token           string
	confirmationCap int
	client          *http.Client
}

var _ blockchains.Checker = (*Checker)(nil)

func New(config Config) (c *Checker) {
	c = &Checker{
		url:             strings.TrimSuffix(config.Url, "/"),
		token:           config.Token,
		confirmationCap: config.ConfirmationCap,
		client:          config.Client,
	}
	if c.url == "" {
		c.url = DefaultUrl
	}
	if c.confirmationCap <= 0 {
		c.confirmationCap = blockchains.DefaultConfirmationCap
	}
	if c.client == nil {
		c.client = http.DefaultClient
	}
	return c
}

type (
	txRef struct {
		TxHash        string `json:"tx_hash"`
		Confirmations int    `json:"confirmations"`
	}
	addressResponse struct {
		Address            string  `json:"address"`
		TotalReceived      int64   `json:"total_received"`
		Balance            int64   `json:"balance"`
		UnconfirmedBalance int64   `json:"unconfirmed_balance"`
		TxRefs             []txRef `json:"txrefs"`
	}
)

func coin(network blockchains.Network) (c string, err error) {
	switch network {
	case blockchains.NetworkBitcoin:
		return "btc", nil
	case blockchains.NetworkLitecoin:
		return "ltc", nil
	default:
		return "", network.Validate()
	}
}

func (c *Checker) endpoint(req blockchains.CheckRequest) (endpoint string, err error) {
	name, err := coin(req.Network)
	if err != nil {
		return "", err
	}

	endpoint = fmt.Sprintf("%s/v1/%s/main/addrs/%s", c.url, name, url.PathEscape(req.Address))
	if c.token != "" {
		endpoint += "?" + url.Values{"token": []string{c.token}}.Encode()
	}
	return endpoint, nil
}

func positive(v int64) (u uint64) {
	return uint64(max(v, 0))
}

func (c *Checker) Check(ctx context.Context, req blockchains.CheckRequest) (confirmation blockchains.Confirmation, err error) {
	if req.Address == "" {
		return confirmation, blockchains.Failed(fmt.Errorf("empty address"))
	}

	endpoint, err := c.endpoint(req)
	if err != nil {
		return confirmation, blockchains.Failed(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return confirmation, blockchains.Failed(fmt.Errorf("failed to prepare request: %w", err))
	}
	httpReq.Header.Set("Accept", "application/json")

	res, err := c.client.Do(httpReq)
	if err != nil {
		return confirmation, blockchains.Failed(fmt.Errorf("failed to query explorer: %w", err))
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(res.Body, maxBodySize))
		return confirmation, blockchains.Failed(fmt.Errorf("unexpected status: %s", res.Status))
	}

	var body addressResponse
	err = json.NewDecoder(io.LimitReader(res.Body, maxBodySize)).Decode(&body)
	if err != nil {
		return confirmation, blockchains.Failed(fmt.Errorf("failed to decode response: %w", err))
	}

	exp := req.Network.UnitExp()
	received := positive(body.TotalReceived) + positive(body.UnconfirmedBalance)

	confirmation.Received = decimal.FromUnits(received, exp)
	confirmation.Balance = decimal.FromUnits(positive(body.Balance), exp)
	if len(body.TxRefs) > 0 {
		confirmation.Confirmations = utils.Clamp(body.TxRefs[0].Confirmations, 0, c.confirmationCap)
	}
	return confirmation, nil
}
