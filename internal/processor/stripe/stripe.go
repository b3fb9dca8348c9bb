// Package stripe is the concrete implementation of
// internal/processor.Processor against the Stripe card-processor and
// Connect platform, grounded on original_source/src/stripe_client.rs
// (calculate_stripe_fees, get_oauth_url, post_connect_code,
// get_login_link, charge, transfer, get_account) and reimplemented
// against github.com/stripe/stripe-go/v82 and golang.org/x/oauth2
// instead of hand-rolled HTTP calls.
package stripe

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/account"
	"github.com/stripe/stripe-go/v82/charge"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/loginlink"
	"github.com/stripe/stripe-go/v82/transfer"
	"golang.org/x/oauth2"

	"github.com/umpyre/beancounter/internal/core"
	"github.com/umpyre/beancounter/internal/processor"
)

// Config holds the processor credentials and Connect OAuth settings.
type Config struct {
	SecretKey       string `mapstructure:"secret_key"`
	ConnectClientID string `mapstructure:"connect_client_id"`
	RedirectURI     string `mapstructure:"redirect_uri"`

	// IdempotencyStorePath is where the local idempotency-key ledger
	// (internal/processor/stripe/idempotency.go) is kept.
	IdempotencyStorePath string `mapstructure:"idempotency_store_path"`
}

// Client is the concrete processor.Processor implementation.
type Client struct {
	cfg        Config
	sc         *client.API
	oauthCfg   oauth2.Config
	loginLinks *expirable.LRU[string, string]
	idempotent *idempotencyStore
	log        zerolog.Logger
}

// New constructs a Client, opening its local idempotency store.
func New(cfg Config, log zerolog.Logger) (*Client, error) {
	sc := &client.API{}
	sc.Init(cfg.SecretKey, nil)

	cache := expirable.NewLRU[string, string](1024, nil, 60*time.Second)

	idem, err := openIdempotencyStore(cfg.IdempotencyStorePath)
	if err != nil {
		return nil, err
	}

	return &Client{
		cfg: cfg,
		sc:  sc,
		oauthCfg: oauth2.Config{
			ClientID: cfg.ConnectClientID,
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://connect.stripe.com/oauth/authorize",
				TokenURL: "https://connect.stripe.com/oauth/token",
			},
			RedirectURL: cfg.RedirectURI,
		},
		loginLinks: cache,
		idempotent: idem,
		log:        log,
	}, nil
}

func (c *Client) Close() error {
	return c.idempotent.Close()
}

// Charge mirrors stripe_client.rs's charge(token, amount, client_id, tx_id):
// source=token, currency=USD, capture=true, metadata carries client_id
// and the caller-supplied reference.
func (c *Client) Charge(ctx context.Context, req processor.ChargeRequest) (processor.ChargeResponse, error) {
	if c.idempotent.Seen(req.Reference) {
		return processor.ChargeResponse{}, &core.StripeError{Message: "duplicate charge reference " + req.Reference}
	}

	params := &stripe.ChargeParams{
		Amount:   stripe.Int64(int64(req.AmountCents)),
		Currency: stripe.String(string(stripe.CurrencyUSD)),
		Source:   &stripe.SourceParams{Token: stripe.String(req.Token)},
	}
	params.AddMetadata("client_id", req.ClientID.String())
	params.AddMetadata("reference", req.Reference)
	params.SetIdempotencyKey(req.Reference)

	ch, err := c.sc.Charges.New(params)
	if err != nil {
		return processor.ChargeResponse{}, toStripeError(err)
	}
	if err := c.idempotent.Record(req.Reference); err != nil {
		c.log.Warn().Err(err).Str("reference", req.Reference).Msg("failed to record charge idempotency key")
	}

	raw, err := json.Marshal(ch)
	if err != nil {
		return processor.ChargeResponse{}, &core.StripeError{Message: "failed to encode charge response"}
	}

	return processor.ChargeResponse{
		Succeeded:   ch.Status == stripe.ChargeStatusSucceeded,
		RawResponse: raw,
		Message:     string(ch.Status),
	}, nil
}

// Transfer mirrors stripe_client.rs's transfer(amount, stripe_user_id).
func (c *Client) Transfer(ctx context.Context, req processor.TransferRequest) (processor.TransferResponse, error) {
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(req.AmountCents),
		Currency:    stripe.String(string(stripe.CurrencyUSD)),
		Destination: stripe.String(req.ExternalUserID),
	}

	tr, err := c.sc.Transfers.New(params)
	if err != nil {
		return processor.TransferResponse{}, toStripeError(err)
	}

	raw, err := json.Marshal(tr)
	if err != nil {
		return processor.TransferResponse{}, &core.StripeError{Message: "failed to encode transfer response"}
	}
	return processor.TransferResponse{RawResponse: raw}, nil
}

// GetLoginLink mirrors stripe_client.rs's get_login_link, caching
// results for 60 seconds so repeated GetConnectAccount polling from the RPC
// façade does not hammer the processor (SPEC_FULL.md §11).
func (c *Client) GetLoginLink(ctx context.Context, externalUserID string) (string, error) {
	if link, ok := c.loginLinks.Get(externalUserID); ok {
		return link, nil
	}

	link, err := loginlink.New(&stripe.LoginLinkParams{Account: stripe.String(externalUserID)})
	if err != nil {
		return "", toStripeError(err)
	}

	c.loginLinks.Add(externalUserID, link.URL)
	return link.URL, nil
}

// GetAccount mirrors stripe_client.rs's get_account.
func (c *Client) GetAccount(ctx context.Context, externalUserID string) (processor.AccountDetails, error) {
	acct, err := account.GetByID(externalUserID, nil)
	if err != nil {
		return processor.AccountDetails{}, toStripeError(err)
	}
	raw, err := json.Marshal(acct)
	if err != nil {
		return processor.AccountDetails{}, &core.StripeError{Message: "failed to encode account response"}
	}
	return processor.AccountDetails{RawDetails: raw}, nil
}

// GetOAuthURL mirrors stripe_client.rs's get_oauth_url, built with
// net/url.Values instead of the original's regex-based array fixup.
func (c *Client) GetOAuthURL(state string) string {
	params := url.Values{}
	params.Set("client_id", c.cfg.ConnectClientID)
	params.Set("redirect_uri", c.cfg.RedirectURI)
	params.Set("state", state)
	params.Set("response_type", "code")
	params.Set("stripe_user[business_type]", "individual")
	params.Set("suggested_capabilities[]", "platform_payments")

	return "https://connect.stripe.com/oauth/authorize?" + params.Encode()
}

// ExchangeOAuthCode mirrors stripe_client.rs's post_connect_code,
// reimplemented against golang.org/x/oauth2's exchange flow.
func (c *Client) ExchangeOAuthCode(ctx context.Context, code string) (processor.OAuthCredentials, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	token, err := c.oauthCfg.Exchange(ctx, code,
		oauth2.SetAuthURLParam("client_secret", c.cfg.SecretKey))
	if err != nil {
		return processor.OAuthCredentials{}, &core.StripeError{Message: "oauth exchange failed: " + err.Error()}
	}

	externalUserID, _ := token.Extra("stripe_user_id").(string)
	if externalUserID == "" {
		return processor.OAuthCredentials{}, &core.StripeError{Message: "oauth response missing stripe_user_id"}
	}

	raw, err := json.Marshal(token)
	if err != nil {
		return processor.OAuthCredentials{}, &core.StripeError{Message: "failed to encode oauth credentials"}
	}

	return processor.OAuthCredentials{ExternalUserID: externalUserID, RawCredentials: raw}, nil
}

func toStripeError(err error) error {
	if stripeErr, ok := err.(*stripe.Error); ok {
		return &core.StripeError{
			RequestError: &core.StripeRequestError{
				HTTPStatus:  stripeErr.HTTPStatusCode,
				ErrorType:   string(stripeErr.Type),
				Message:     stripeErr.Msg,
				Code:        string(stripeErr.Code),
				DeclineCode: stripeErr.DeclineCode,
			},
			Message: stripeErr.Msg,
		}
	}
	return &core.StripeError{Message: err.Error()}
}
