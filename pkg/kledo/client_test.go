// kledo/client_test.go
package kledo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens string

func (s staticTokens) AccessToken(ctx context.Context) (string, error) {
	return string(s), nil
}

func TestSendRequestSetsAuthHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))
		assert.Equal(t, "finance", r.Header.Get("X-APP"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		w.Write([]byte(`{"data":{"id":7,"name":"Ops","email":"ops@example.com"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, staticTokens("token-123"))

	profile, err := client.GetProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), profile.ID)
	assert.Equal(t, "ops@example.com", profile.Email)
}

func TestErrorBodyIsSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"The name has already been taken."}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, staticTokens("t"))

	_, err := client.CreateContact(context.Background(), ContactRequest{Name: "dup", TypeID: CustomerTypeID})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "The name has already been taken.", apiErr.Message)
	assert.Contains(t, apiErr.Body, "already been taken")
}

func TestGetRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"data":{"data":[{"id":1,"name":"Sales","code":"4-100","type":"Income","active":true}]}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, staticTokens("t"))

	accounts, err := client.ListFinanceAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "Sales", accounts[0].Name)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"forbidden"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, staticTokens("t"))

	_, err := client.ListContactGroups(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPostIsNeverRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"boom"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, staticTokens("t"))

	_, err := client.CreateInvoice(context.Background(), InvoiceRequest{ContactID: 1})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFindContactByEmail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "a@b.com", r.URL.Query().Get("search"))
		w.Write([]byte(`{"data":{"data":[{"id":42,"name":"a","email":"a@b.com","group_id":1,"type_id":1}]}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, staticTokens("t"))

	contact, err := client.FindContactByEmail(context.Background(), "a@b.com")
	require.NoError(t, err)
	require.NotNil(t, contact)
	assert.Equal(t, int64(42), contact.ID)
	assert.True(t, contact.IsCustomer())
}

func TestFindContactByEmailNoMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"data":[]}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, staticTokens("t"))

	contact, err := client.FindContactByEmail(context.Background(), "missing@b.com")
	require.NoError(t, err)
	assert.Nil(t, contact)
}

func TestContextDeadlineMapsToUpstreamTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"data":{"data":[]}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, staticTokens("t"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := client.ListFinanceAccounts(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamTimeout)
}
