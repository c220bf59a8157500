package accounting

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBooks struct {
	refreshes atomic.Int32
	rejectTok atomic.Value
	lastDoc   Document
	mu        sync.Mutex
	gate      chan struct{}
}

func (f *fakeBooks) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v2/token", func(w http.ResponseWriter, r *http.Request) {
		if gate := f.gate; gate != nil {
			<-gate
		}
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		n := f.refreshes.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-" + string(rune('0'+n)),
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/estimates", func(w http.ResponseWriter, r *http.Request) {
		if bad, _ := f.rejectTok.Load().(string); bad != "" && r.Header.Get("Authorization") == "Zoho-oauthtoken "+bad {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":57,"message":"invalid token"}`))
			return
		}
		assert.Equal(t, "org-1", r.URL.Query().Get("organization_id"))
		var doc Document
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&doc))
		f.mu.Lock()
		f.lastDoc = doc
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"code":0,"message":"ok","estimate":{"estimate_id":"EST-100","total":550}}`))
	})
	mux.HandleFunc("/invoices", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":1001,"message":"customer inactive"}`))
	})
	mux.HandleFunc("/contacts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(`{"contacts":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"contact":{"contact_id":"C-9"}}`))
	})
	return mux
}

func newTestClient(t *testing.T) (*Client, *fakeBooks, *miniredis.Miniredis) {
	t.Helper()
	return newTestClientWith(t, &fakeBooks{})
}

func newTestClientWith(t *testing.T, books *fakeBooks) (*Client, *fakeBooks, *miniredis.Miniredis) {
	t.Helper()
	srv := httptest.NewServer(books.handler(t))
	t.Cleanup(srv.Close)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	client := NewClient(Config{
		BaseURL:        srv.URL,
		AuthURL:        srv.URL,
		ClientID:       "id",
		ClientSecret:   "secret",
		RefreshToken:   "refresh",
		OrganizationID: "org-1",
		Timeout:        5 * time.Second,
	}, rdb, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return client, books, mr
}

func TestClient_CreateQuote(t *testing.T) {
	client, books, _ := newTestClient(t)

	id, err := client.CreateQuote(context.Background(), Document{
		CustomerID:      "C-9",
		ReferenceNumber: "CEM-260310-ABC123",
		Date:            "2026-03-10",
		LineItems:       []LineItem{{ItemID: "I-1", Quantity: 2, Rate: 100}},
	})
	require.NoError(t, err)
	assert.Equal(t, "EST-100", id)
	assert.Equal(t, "CEM-260310-ABC123", books.lastDoc.ReferenceNumber)
}

func TestClient_TokenCachedInRedis(t *testing.T) {
	client, books, mr := newTestClient(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := client.CreateQuote(ctx, Document{CustomerID: "C-9"})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), books.refreshes.Load())

	tok, err := mr.Get(tokenCacheKey)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
	assert.Greater(t, mr.TTL(tokenCacheKey), 50*time.Minute)
}

func TestClient_ConcurrentRefreshIsShared(t *testing.T) {
	client, books, _ := newTestClientWith(t, &fakeBooks{gate: make(chan struct{})})
	ctx := context.Background()

	var wg sync.WaitGroup
	tokens := make([]string, 8)
	for i := range tokens {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tokens[i], _ = client.tokens.Token(ctx)
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(books.gate)
	wg.Wait()

	assert.Equal(t, int32(1), books.refreshes.Load())
	for _, tok := range tokens {
		assert.Equal(t, "tok-1", tok)
	}
}

func TestClient_RetriesOnceAfterUnauthorized(t *testing.T) {
	client, books, mr := newTestClient(t)
	require.NoError(t, mr.Set(tokenCacheKey, "stale"))
	books.rejectTok.Store("stale")

	id, err := client.CreateQuote(context.Background(), Document{CustomerID: "C-9"})
	require.NoError(t, err)
	assert.Equal(t, "EST-100", id)
	assert.Equal(t, int32(1), books.refreshes.Load())
}

func TestClient_APIError(t *testing.T) {
	client, _, _ := newTestClient(t)

	_, err := client.CreateInvoice(context.Background(), Document{CustomerID: "C-9"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRemote)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 1001, apiErr.Code)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestClient_EnsureCustomerCreatesWhenMissing(t *testing.T) {
	client, _, _ := newTestClient(t)

	id, err := client.EnsureCustomer(context.Background(), Contact{Name: "Acme Builders", Email: "ops@acme.test"})
	require.NoError(t, err)
	assert.Equal(t, "C-9", id)
}

func TestClient_WorksWithoutRedis(t *testing.T) {
	books := &fakeBooks{}
	srv := httptest.NewServer(books.handler(t))
	defer srv.Close()
	client := NewClient(Config{BaseURL: srv.URL, AuthURL: srv.URL, OrganizationID: "org-1"}, nil, nil)

	_, err := client.CreateQuote(context.Background(), Document{CustomerID: "C-9"})
	require.NoError(t, err)
	_, err = client.CreateQuote(context.Background(), Document{CustomerID: "C-9"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), books.refreshes.Load())
}
