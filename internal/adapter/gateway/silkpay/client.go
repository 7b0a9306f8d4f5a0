// Package silkpay implements the outbound SilkPay gateway protocol:
// JSON POSTs signed with the merchant's secret key.
package silkpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"merchant-payout-platform/internal/core/ports"
	"merchant-payout-platform/pkg/apperror"

	"github.com/rs/zerolog"
)

const (
	payoutPath  = "/transaction/payout"
	queryPath   = "/transaction/payout/query"
	balancePath = "/transaction/balance"
)

// Config holds the gateway endpoint and per-operation timeouts.
type Config struct {
	BaseURL        string
	NotifyURL      string
	CreateTimeout  time.Duration
	QueryTimeout   time.Duration
	BalanceTimeout time.Duration
}

// Client implements ports.GatewayClient against a SilkPay endpoint.
//
// Business failures arrive as data: the caller inspects the embedded
// status field. Only transport problems become errors, always
// GATEWAY_UNAVAILABLE so callers can treat them as retryable. The client
// itself never retries.
type Client struct {
	cfg        Config
	createCli  *http.Client
	queryCli   *http.Client
	balanceCli *http.Client
	sigSvc     ports.SignatureService
	log        zerolog.Logger
}

// NewClient creates a SilkPay client with one HTTP client per timeout class.
func NewClient(cfg Config, sigSvc ports.SignatureService, log zerolog.Logger) *Client {
	return &Client{
		cfg:        cfg,
		createCli:  &http.Client{Timeout: cfg.CreateTimeout},
		queryCli:   &http.Client{Timeout: cfg.QueryTimeout},
		balanceCli: &http.Client{Timeout: cfg.BalanceTimeout},
		sigSvc:     sigSvc,
		log:        log,
	}
}

// createPayoutBody is the wire shape of a payout-create request.
// Timestamp rides as a millisecond-epoch number; the signature covers its
// decimal string form.
type createPayoutBody struct {
	MerchantNo string `json:"mId"`
	OutTradeNo string `json:"mOrderId"`
	Amount     string `json:"amount"`
	Timestamp  int64  `json:"timestamp"`
	NotifyURL  string `json:"notifyUrl"`
	UPIID      string `json:"upi"`
	BankNo     string `json:"bankNo"`
	IFSCCode   string `json:"ifsc"`
	Name       string `json:"name"`
	Sign       string `json:"sign"`
}

type queryPayoutBody struct {
	MerchantNo string `json:"mId"`
	OutTradeNo string `json:"mOrderId"`
	Timestamp  int64  `json:"timestamp"`
	Sign       string `json:"sign"`
}

type balanceBody struct {
	MerchantNo string `json:"mId"`
	Timestamp  int64  `json:"timestamp"`
	Sign       string `json:"sign"`
}

// CreatePayout submits a new payout order.
func (c *Client) CreatePayout(ctx context.Context, creds ports.GatewayCredentials, req ports.GatewayPayoutRequest) (*ports.GatewayResponse, error) {
	amount := req.Amount.StringFixed(2)
	ts := time.Now().UnixMilli()

	sign, err := c.sigSvc.Sign(creds.SecretKey, creds.MerchantNo, req.OutTradeNo, amount, strconv.FormatInt(ts, 10))
	if err != nil {
		return nil, err
	}

	body := createPayoutBody{
		MerchantNo: creds.MerchantNo,
		OutTradeNo: req.OutTradeNo,
		Amount:     amount,
		Timestamp:  ts,
		NotifyURL:  c.cfg.NotifyURL,
		UPIID:      req.UPIID,
		BankNo:     req.BankNo,
		IFSCCode:   req.IFSCCode,
		Name:       req.Name,
		Sign:       sign,
	}

	return c.post(ctx, c.createCli, payoutPath, req.OutTradeNo, body)
}

// QueryPayout fetches the current status of a payout order.
func (c *Client) QueryPayout(ctx context.Context, creds ports.GatewayCredentials, outTradeNo string) (*ports.GatewayResponse, error) {
	ts := time.Now().UnixMilli()

	sign, err := c.sigSvc.Sign(creds.SecretKey, creds.MerchantNo, outTradeNo, strconv.FormatInt(ts, 10))
	if err != nil {
		return nil, err
	}

	body := queryPayoutBody{
		MerchantNo: creds.MerchantNo,
		OutTradeNo: outTradeNo,
		Timestamp:  ts,
		Sign:       sign,
	}

	return c.post(ctx, c.queryCli, queryPath, outTradeNo, body)
}

// GetBalance fetches the merchant's authoritative balance.
func (c *Client) GetBalance(ctx context.Context, creds ports.GatewayCredentials) (*ports.GatewayResponse, error) {
	ts := time.Now().UnixMilli()

	sign, err := c.sigSvc.Sign(creds.SecretKey, creds.MerchantNo, strconv.FormatInt(ts, 10))
	if err != nil {
		return nil, err
	}

	body := balanceBody{
		MerchantNo: creds.MerchantNo,
		Timestamp:  ts,
		Sign:       sign,
	}

	return c.post(ctx, c.balanceCli, balancePath, "", body)
}

func (c *Client) post(ctx context.Context, cli *http.Client, path, outTradeNo string, payload any) (*ports.GatewayResponse, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("encode gateway request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("build gateway request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := cli.Do(req)
	if err != nil {
		return nil, apperror.ErrGatewayUnavailable(fmt.Errorf("post %s: %w", path, err))
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperror.ErrGatewayUnavailable(fmt.Errorf("read %s response: %w", path, err))
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, apperror.ErrGatewayUnavailable(fmt.Errorf("post %s: http %d", path, resp.StatusCode))
	}

	var out ports.GatewayResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apperror.ErrGatewayUnavailable(fmt.Errorf("decode %s response: %w", path, err))
	}
	out.Raw = body

	c.log.Debug().
		Str("path", path).
		Str("out_trade_no", outTradeNo).
		Str("gateway_status", out.Status).
		Msg("gateway call completed")

	return &out, nil
}
