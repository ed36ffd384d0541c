package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"marketplace_backend/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gatewayConfig struct{ url string }

func (g gatewayConfig) GetWhatsAppURL() string        { return g.url }
func (g gatewayConfig) GetWhatsAppKey() string        { return "user:pass" }
func (g gatewayConfig) GetWhatsAppDeviceID() string   { return "device-1" }
func (g gatewayConfig) GetPhoneDefaultRegion() string { return "US" }

func TestSendMessageNormalisesNumber(t *testing.T) {
	var got gowaRequest
	var auth, device string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/send/message", r.URL.Path)
		auth = r.Header.Get("Authorization")
		device = r.Header.Get("X-Device-Id")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := gatewayConfig{url: srv.URL + "/"}
	client := NewClient(cfg, cfg, logger.Discard())
	require.NoError(t, client.SendMessage(context.Background(), "(650) 253-0000", "New request"))

	assert.Equal(t, "16502530000", got.Phone)
	assert.Equal(t, "New request", got.Message)
	assert.Equal(t, "Basic dXNlcjpwYXNz", auth)
	assert.Equal(t, "device-1", device)
}

func TestSendMessageReportsGatewayErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "device offline", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := gatewayConfig{url: srv.URL}
	err := NewClient(cfg, cfg, logger.Discard()).SendMessage(context.Background(), "+16502530000", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestNilClientDropsMessages(t *testing.T) {
	client := NewClient(gatewayConfig{}, gatewayConfig{}, logger.Discard())
	assert.Nil(t, client)
	assert.False(t, client.Enabled())
	assert.NoError(t, client.SendMessage(context.Background(), "+16502530000", "hi"))
}
