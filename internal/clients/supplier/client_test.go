package supplier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplier-engine-service/internal/clients"
)

type fakeSupplier struct {
	t        *testing.T
	mux      *http.ServeMux
	auths    atomic.Int32
	refreshs atomic.Int32
	tokenSeq atomic.Int32

	// refreshCode, when set, makes the refresh endpoint answer with that error code
	refreshCode atomic.Int32
}

func newFakeSupplier(t *testing.T) (*fakeSupplier, *httptest.Server) {
	f := &fakeSupplier{t: t, mux: http.NewServeMux()}
	f.mux.HandleFunc("/authentication/getAccessToken", func(w http.ResponseWriter, r *http.Request) {
		f.auths.Add(1)
		f.writeToken(w)
	})
	f.mux.HandleFunc("/authentication/refreshAccessToken", func(w http.ResponseWriter, r *http.Request) {
		f.refreshs.Add(1)
		if code := f.refreshCode.Load(); code != 0 {
			writeEnvelope(w, int(code), nil)
			return
		}
		f.writeToken(w)
	})
	srv := httptest.NewServer(f.mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeSupplier) writeToken(w http.ResponseWriter) {
	n := f.tokenSeq.Add(1)
	writeEnvelope(w, 200, map[string]string{
		"accessToken":            "token-" + string(rune('0'+n)),
		"accessTokenExpiryDate":  time.Now().Add(15 * 24 * time.Hour).Format(time.RFC3339),
		"refreshToken":           "refresh",
		"refreshTokenExpiryDate": time.Now().Add(180 * 24 * time.Hour).Format(time.RFC3339),
	})
}

func writeEnvelope(w http.ResponseWriter, code int, data interface{}) {
	raw, _ := json.Marshal(data)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"code":      code,
		"result":    code == 200,
		"message":   "msg",
		"data":      json.RawMessage(raw),
		"requestId": "req-1",
	})
}

func newTestClient(t *testing.T, baseURL string) *Client {
	return newPacedTestClient(t, baseURL, 0)
}

func newPacedTestClient(t *testing.T, baseURL string, interval time.Duration) *Client {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	c, err := New(Config{
		BaseURL:      baseURL,
		APIKey:       "key",
		MinInterval:  interval,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
		Timeout:      5 * time.Second,
	}, logger)
	require.NoError(t, err)
	return c
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{BaseURL: "http://localhost"}, nil)
	assert.ErrorIs(t, err, ErrNoCredentials)

	_, err = New(Config{BaseURL: "http://localhost", Email: "a@b.c"}, nil)
	assert.ErrorIs(t, err, ErrNoCredentials)

	_, err = New(Config{BaseURL: "http://localhost", Email: "a@b.c", Password: "pw"}, nil)
	assert.NoError(t, err)
}

func TestEnsureTokenReusesValidToken(t *testing.T) {
	f, srv := newFakeSupplier(t)
	c := newTestClient(t, srv.URL)

	tok1, err := c.EnsureToken(context.Background())
	require.NoError(t, err)
	tok2, err := c.EnsureToken(context.Background())
	require.NoError(t, err)

	assert.Equal(t, tok1, tok2)
	assert.Equal(t, int32(1), f.auths.Load())
}

func TestEnsureTokenRefreshesNearExpiry(t *testing.T) {
	f, srv := newFakeSupplier(t)
	c := newTestClient(t, srv.URL)

	_, err := c.EnsureToken(context.Background())
	require.NoError(t, err)

	// 30 minutes before the access token expires
	c.now = func() time.Time { return time.Now().Add(15*24*time.Hour - 30*time.Minute) }
	_, err = c.EnsureToken(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), f.auths.Load())
	assert.Equal(t, int32(1), f.refreshs.Load())
	assert.Equal(t, int64(1), c.Stats().TokenRefreshes)
}

func TestEnsureTokenFallsBackWhenRefreshFails(t *testing.T) {
	f, srv := newFakeSupplier(t)
	c := newTestClient(t, srv.URL)

	tok1, err := c.EnsureToken(context.Background())
	require.NoError(t, err)

	f.refreshCode.Store(1600003)
	c.now = func() time.Time { return time.Now().Add(15*24*time.Hour - 30*time.Minute) }
	tok2, err := c.EnsureToken(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, tok1, tok2)
	assert.Equal(t, int32(1), f.refreshs.Load())
	assert.Equal(t, int32(2), f.auths.Load())
	assert.Equal(t, int64(0), c.Stats().TokenRefreshes)
	assert.Equal(t, int64(2), c.Stats().Authentications)
}

func TestCallPacesRequests(t *testing.T) {
	f, srv := newFakeSupplier(t)
	var mu sync.Mutex
	var seen []time.Time
	f.mux.HandleFunc("/shopping/pay/getBalance", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, time.Now())
		mu.Unlock()
		writeEnvelope(w, 200, map[string]interface{}{"amount": "10"})
	})
	const interval = 50 * time.Millisecond
	c := newPacedTestClient(t, srv.URL, interval)

	for i := 0; i < 3; i++ {
		_, err := c.GetBalance(context.Background())
		require.NoError(t, err)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 3)
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i].Sub(seen[i-1]), interval-5*time.Millisecond, "gap %d", i)
	}
	assert.Equal(t, int64(4), c.Stats().Requests, "the token exchange is paced too")
}

func TestCallReauthenticatesOnHTTP401(t *testing.T) {
	f, srv := newFakeSupplier(t)
	var calls atomic.Int32
	f.mux.HandleFunc("/shopping/pay/getBalance", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeEnvelope(w, 200, map[string]interface{}{"amount": "42.5"})
	})
	c := newTestClient(t, srv.URL)

	balance, err := c.GetBalance(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 42.5, balance, 1e-9)

	assert.Equal(t, int32(2), calls.Load(), "one rejected call and one retry")
	assert.Equal(t, int64(1), c.Stats().ForcedReauths)
	assert.Equal(t, int32(1), f.auths.Load())
	assert.Equal(t, int32(1), f.refreshs.Load())
}

func TestCallReauthenticatesOnTokenError(t *testing.T) {
	f, srv := newFakeSupplier(t)
	var calls atomic.Int32
	f.mux.HandleFunc("/product/query", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeEnvelope(w, 1600001, nil)
			return
		}
		assert.NotEmpty(t, r.Header.Get(tokenHeader))
		writeEnvelope(w, 200, map[string]interface{}{
			"pid":           "P1",
			"productNameEn": "Silicone Spatula",
			"sellPrice":     "2.10 -- 3.50",
			"productImage":  `["https://img.example.com/a.jpg","https://img.example.com/b.jpg"]`,
			"variants": []map[string]interface{}{
				{"vid": "V1", "pid": "P1", "variantSellPrice": 2.1},
			},
		})
	})
	c := newTestClient(t, srv.URL)

	detail, err := c.GetProduct(context.Background(), "P1")
	require.NoError(t, err)

	// the rejected token is replaced through the refresh token
	assert.Equal(t, int32(1), f.auths.Load())
	assert.Equal(t, int32(1), f.refreshs.Load())
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "P1", detail.PID)
	assert.InDelta(t, 2.10, detail.SellPrice, 1e-9)
	assert.Equal(t, "https://img.example.com/a.jpg", detail.Image)
	assert.Len(t, detail.Gallery, 2)
	require.Len(t, detail.Variants, 1)
	assert.Equal(t, "V1", detail.Variants[0].VID)
	assert.Equal(t, int64(1), c.Stats().ForcedReauths)
}

func TestCallRetriesServerErrors(t *testing.T) {
	f, srv := newFakeSupplier(t)
	var calls atomic.Int32
	f.mux.HandleFunc("/shopping/pay/getBalance", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeEnvelope(w, 200, map[string]interface{}{"amount": "123.45"})
	})
	c := newTestClient(t, srv.URL)

	balance, err := c.GetBalance(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 123.45, balance, 1e-9)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCallGivesUpAfterMaxRetries(t *testing.T) {
	f, srv := newFakeSupplier(t)
	var calls atomic.Int32
	f.mux.HandleFunc("/shopping/pay/getBalance", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	c := newTestClient(t, srv.URL)

	_, err := c.GetBalance(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, int64(1), c.Stats().Errors)
}

func TestCallReturnsTypedAPIError(t *testing.T) {
	f, srv := newFakeSupplier(t)
	var calls atomic.Int32
	f.mux.HandleFunc("/shopping/order/confirmOrder", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPatch, r.Method)
		writeEnvelope(w, 1600100, nil)
	})
	c := newTestClient(t, srv.URL)

	err := c.ConfirmOrder(context.Background(), "CJ1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 1600100, apiErr.Code)
	assert.Equal(t, "req-1", apiErr.RequestID)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestSearchProductsMapsListing(t *testing.T) {
	f, srv := newFakeSupplier(t)
	f.mux.HandleFunc("/product/list", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "kitchen", r.URL.Query().Get("productNameEn"))
		assert.Equal(t, "2", r.URL.Query().Get("pageNum"))
		writeEnvelope(w, 200, map[string]interface{}{
			"pageNum": 2,
			"total":   41,
			"list": []map[string]interface{}{
				{"pid": "P1", "productNameEn": "Knife", "sellPrice": 4.5, "productImage": "https://img.example.com/k.jpg"},
				{"pid": "P2", "productNameEn": "Fork", "sellPrice": "1.99"},
			},
		})
	})
	c := newTestClient(t, srv.URL)

	res, err := c.SearchProducts(context.Background(), &clients.SearchOptions{Keyword: "kitchen", Page: 2, PageSize: 20})
	require.NoError(t, err)
	assert.Equal(t, 41, res.Total)
	require.Len(t, res.Products, 2)
	assert.Equal(t, "https://img.example.com/k.jpg", res.Products[0].Image)
	assert.InDelta(t, 1.99, res.Products[1].SellPrice, 1e-9)
}

func TestGetTrackingMapsRoutes(t *testing.T) {
	f, srv := newFakeSupplier(t)
	f.mux.HandleFunc("/logistic/trackInfo", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 200, []map[string]interface{}{{
			"trackingNumber": "TN1",
			"trackingStatus": "In transit",
			"routes": []map[string]string{
				{"acceptTime": "2024-05-01 10:00:00", "acceptAddress": "Shenzhen", "remark": "Departed"},
			},
		}})
	})
	c := newTestClient(t, srv.URL)

	info, err := c.GetTracking(context.Background(), "TN1")
	require.NoError(t, err)
	require.Len(t, info.Events, 1)
	assert.Equal(t, "Shenzhen", info.Events[0].Location)
	assert.Equal(t, "Departed", info.Events[0].Status)
}

func TestFlexDecoding(t *testing.T) {
	var p flexPrice
	require.NoError(t, json.Unmarshal([]byte(`"12.50 -- 20.00"`), &p))
	assert.InDelta(t, 12.5, float64(p), 1e-9)
	require.NoError(t, json.Unmarshal([]byte(`7`), &p))
	assert.InDelta(t, 7.0, float64(p), 1e-9)
	require.NoError(t, json.Unmarshal([]byte(`""`), &p))
	assert.Zero(t, float64(p))

	var imgs flexImages
	require.NoError(t, json.Unmarshal([]byte(`"https://a/x.jpg"`), &imgs))
	assert.Equal(t, flexImages{"https://a/x.jpg"}, imgs)
	require.NoError(t, json.Unmarshal([]byte(`["https://a/1.jpg", ""]`), &imgs))
	assert.Equal(t, flexImages{"https://a/1.jpg"}, imgs)
}
