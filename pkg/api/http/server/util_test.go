package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	ie "github.com/minesim/minesim/pkg/errors"
	"github.com/minesim/minesim/pkg/structs"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		Name   string
		Given  error
		Expect int
	}{
		{"Nil", nil, http.StatusOK},
		{"Validation", fmt.Errorf("%w nope", ie.ErrValidation), http.StatusBadRequest},
		{"InvalidArg", ie.ErrInvalidArg, http.StatusBadRequest},
		{"NotFound", fmt.Errorf("%w job x", ie.ErrNotFound), http.StatusNotFound},
		{"NotReady", fmt.Errorf("%w job x is PENDING", ie.ErrNotReady), http.StatusTooEarly},
		{"InvalidState", ie.ErrInvalidState, http.StatusConflict},
		{"Unknown", fmt.Errorf("who knows"), http.StatusInternalServerError},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			assert.Equal(t, c.Expect, mapError(c.Given))
		})
	}
}

func TestUnmarshalQuery(t *testing.T) {
	id := "0d2f4f15-9dc8-4f92-a48c-6f7bcb9c1d3a"

	cases := []struct {
		Name      string
		URL       string
		Expect    *structs.Query
		ExpectErr bool
	}{
		{
			"Defaults",
			"/api/v1/discoveries",
			&structs.Query{Limit: 1000},
			false,
		},
		{
			"LimitOffset",
			"/api/v1/discoveries?limit=5&offset=10",
			&structs.Query{Limit: 5, Offset: 10},
			false,
		},
		{
			"BadLimit",
			"/api/v1/discoveries?limit=banana",
			nil,
			true,
		},
		{
			"JobIDs",
			"/api/v1/discoveries?job_ids=" + id,
			&structs.Query{Limit: 1000, JobIDs: []string{id}},
			false,
		},
		{
			"BadJobID",
			"/api/v1/discoveries?job_ids=nope",
			nil,
			true,
		},
		{
			"Statuses",
			"/api/v1/discoveries?statuses=running&statuses=pending",
			&structs.Query{Limit: 1000, Statuses: []structs.Status{structs.RUNNING, structs.PENDING}},
			false,
		},
		{
			"BadStatus",
			"/api/v1/discoveries?statuses=erroring",
			nil,
			true,
		},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, c.URL, nil)

			q := &structs.Query{}
			err := unmarshalQuery(w, r, q)

			if c.ExpectErr {
				assert.NotNil(t, err)
				assert.Equal(t, http.StatusBadRequest, w.Code)
			} else {
				assert.Nil(t, err)
				assert.Equal(t, c.Expect, q)
			}
		})
	}
}
