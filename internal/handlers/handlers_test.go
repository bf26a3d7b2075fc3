package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/apperr"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/chain"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/chat"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/gate"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/models"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/preview"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/readcache"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/relay"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/wallet"
)

const (
	collection = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	holder     = "0x1111111111111111111111111111111111111111"
	outsider   = "0x3333333333333333333333333333333333333333"
)

type holdings map[string]int64

func (h holdings) BalanceOf(ctx context.Context, collection, owner common.Address) (*big.Int, error) {
	return big.NewInt(h[models.NormalizeAddress(owner.Hex())]), nil
}

type downQuerier struct{}

func (downQuerier) BalanceOf(ctx context.Context, collection, owner common.Address) (*big.Int, error) {
	return nil, errors.New("rpc down")
}

func newTestServer(t *testing.T, querier gate.Querier) *httptest.Server {
	t.Helper()
	logger := zerolog.Nop()

	r := relay.New(relay.NewMemoryStore(), relay.Options{Degraded: true, InitialBackoff: time.Millisecond}, logger)
	cache := readcache.New(r, time.Minute, logger)
	r.OnAppend(cache.Append)
	registry := wallet.NewMemoryRegistry()

	svc := chat.NewService(chat.Deps{
		Gate:     gate.New(querier, gate.Options{QueryTimeout: time.Second, RetryBackoff: time.Millisecond}, logger),
		Wallets:  wallet.NewCoordinator(registry, wallet.NewMemoryActivator(), time.Second, logger),
		Registry: registry,
		Relay:    r,
		Cache:    cache,
		Previews: preview.New[chain.CollectionPreview](time.Minute, time.Minute, logger),
	}, logger)

	h := NewHandler(svc, r, nil, nil, logger)
	mux := chi.NewRouter()
	mux.Get("/health", h.Health)
	mux.Get("/api", h.Root)
	mux.Post("/access", h.VerifyAccess)
	mux.Get("/groups/{id}/messages", h.FetchMessages)
	mux.Post("/groups/{id}/messages", h.SendMessage)
	mux.Get("/collections/{address}/preview", h.CollectionPreview)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body interface{}, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func TestVerifyAccessEndpoint(t *testing.T) {
	srv := newTestServer(t, holdings{holder: 1})

	var resp AccessResponse
	status := doJSON(t, http.MethodPost, srv.URL+"/access", AccessRequest{
		Wallets:           []string{outsider, holder},
		CollectionAddress: collection,
	}, &resp)
	if status != http.StatusOK || !resp.HasAccess {
		t.Fatalf("expected access, got %d %+v", status, resp)
	}

	var errResp ErrorResponse
	status = doJSON(t, http.MethodPost, srv.URL+"/access", AccessRequest{
		Wallets:           []string{"nope"},
		CollectionAddress: collection,
	}, &errResp)
	if status != http.StatusBadRequest || errResp.Kind != string(apperr.KindValidation) {
		t.Fatalf("expected validation error, got %d %+v", status, errResp)
	}
}

func TestVerifyAccessGateUnavailable(t *testing.T) {
	srv := newTestServer(t, downQuerier{})

	var errResp ErrorResponse
	status := doJSON(t, http.MethodPost, srv.URL+"/access", AccessRequest{
		Wallets:           []string{holder},
		CollectionAddress: collection,
	}, &errResp)
	if status != http.StatusServiceUnavailable || errResp.Kind != string(apperr.KindGateUnavailable) {
		t.Fatalf("expected gate unavailable, got %d %+v", status, errResp)
	}
	if errResp.Error == "" {
		t.Fatal("expected a detail message")
	}
}

func TestMessagesEndpoints(t *testing.T) {
	srv := newTestServer(t, holdings{holder: 1})
	url := srv.URL + "/groups/" + collection + "/messages"

	var fetched MessagesResponse
	if status := doJSON(t, http.MethodGet, url, nil, &fetched); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if fetched.Count != 2 {
		t.Fatalf("expected 2 seeded messages, got %d", fetched.Count)
	}

	var sent SendMessageResponse
	status := doJSON(t, http.MethodPost, url, SendMessageRequest{Sender: holder, Content: "gm\x00"}, &sent)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if sent.Message.Content != "gm" {
		t.Fatalf("expected sanitized content, got %q", sent.Message.Content)
	}

	if status := doJSON(t, http.MethodGet, url, nil, &fetched); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if fetched.Count != 3 || fetched.Messages[2].ID != sent.Message.ID {
		t.Fatalf("expected the sent message last, got %+v", fetched.Messages)
	}
}

func TestSendMessageErrors(t *testing.T) {
	srv := newTestServer(t, holdings{holder: 1})
	url := srv.URL + "/groups/" + collection + "/messages"

	tests := []struct {
		name   string
		req    SendMessageRequest
		status int
		kind   apperr.Kind
	}{
		{"not a holder", SendMessageRequest{Sender: outsider, Content: "hi"}, http.StatusForbidden, apperr.KindGateDenied},
		{"empty content", SendMessageRequest{Sender: holder, Content: ""}, http.StatusBadRequest, apperr.KindValidation},
		{"reserved kind", SendMessageRequest{Sender: holder, Content: "hi", Kind: "system"}, http.StatusBadRequest, apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var errResp ErrorResponse
			status := doJSON(t, http.MethodPost, url, tt.req, &errResp)
			if status != tt.status || errResp.Kind != string(tt.kind) {
				t.Fatalf("expected %d %s, got %d %+v", tt.status, tt.kind, status, errResp)
			}
		})
	}

	var errResp ErrorResponse
	status := doJSON(t, http.MethodGet, srv.URL+"/groups/unknown/messages", nil, &errResp)
	if status != http.StatusNotFound || errResp.Kind != string(apperr.KindNotFound) {
		t.Fatalf("expected not found, got %d %+v", status, errResp)
	}
}

func TestInvalidJSONBody(t *testing.T) {
	srv := newTestServer(t, holdings{})

	resp, err := http.Post(srv.URL+"/access", "application/json", bytes.NewBufferString("{"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCollectionPreviewEndpoint(t *testing.T) {
	srv := newTestServer(t, holdings{})

	var p chain.CollectionPreview
	status := doJSON(t, http.MethodGet, srv.URL+"/collections/"+collection+"/preview", nil, &p)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if !models.SameAddress(p.Address, collection) {
		t.Fatalf("unexpected preview %+v", p)
	}
}

func TestHealthReportsDegradedRelay(t *testing.T) {
	srv := newTestServer(t, holdings{})

	var resp HealthResponse
	status := doJSON(t, http.MethodGet, srv.URL+"/health", nil, &resp)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if resp.Status != "degraded" || resp.RelayMode != "in-process" {
		t.Fatalf("unexpected health %+v", resp)
	}
	if resp.Checks["relay"].Status != "pass" || resp.Checks["redis"].Status != "skip" {
		t.Fatalf("unexpected checks %+v", resp.Checks)
	}
}

func TestStatusForKinds(t *testing.T) {
	tests := map[apperr.Kind]int{
		apperr.KindValidation:         http.StatusBadRequest,
		apperr.KindGateDenied:         http.StatusForbidden,
		apperr.KindGateUnavailable:    http.StatusServiceUnavailable,
		apperr.KindNoSponsorWallet:    http.StatusConflict,
		apperr.KindWalletSwitchFailed: http.StatusBadGateway,
		apperr.KindRelayUnavailable:   http.StatusServiceUnavailable,
		apperr.KindNotFound:           http.StatusNotFound,
		apperr.KindInternal:           http.StatusInternalServerError,
	}
	for kind, want := range tests {
		if got := statusFor(kind); got != want {
			t.Errorf("statusFor(%s) = %d, want %d", kind, got, want)
		}
	}
}
