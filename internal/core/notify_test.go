package core

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/minesim/minesim/pkg/errors"
	"github.com/minesim/minesim/pkg/structs"
)

func TestRestyNotifierPostsPayload(t *testing.T) {
	var got CallbackPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Nil(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	n := NewRestyNotifier()
	err := n.Notify(context.Background(), &structs.Job{
		ID:          "job-1",
		Status:      structs.FAILED,
		ErrorDetail: "it broke",
		CallbackURL: srv.URL,
	})

	assert.Nil(t, err)
	assert.Equal(t, "job-1", got.JobID)
	assert.Equal(t, structs.FAILED, got.Status)
	assert.Equal(t, "it broke", got.ErrorDetail)
}

func TestRestyNotifierErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewRestyNotifier()
	err := n.Notify(context.Background(), &structs.Job{ID: "job-1", CallbackURL: srv.URL})

	assert.ErrorIs(t, err, errors.ErrNotification)
}

func TestRestyNotifierUnreachable(t *testing.T) {
	n := NewRestyNotifier()
	err := n.Notify(context.Background(), &structs.Job{
		ID:          "job-1",
		CallbackURL: "http://127.0.0.1:1/hook",
	})

	assert.ErrorIs(t, err, errors.ErrNotification)
}
