package vmapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sre-norns/cloudapi/pkg/vmapi"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPClient(t *testing.T) {
	_, err := vmapi.NewHTTPClient("vmapi.local", nil)
	require.Error(t, err)

	_, err = vmapi.NewHTTPClient("ftp://vmapi.local", nil)
	require.Error(t, err)

	_, err = vmapi.NewHTTPClient("http://vmapi.local", nil)
	require.NoError(t, err)
}

func TestHTTPClient_ListVms(t *testing.T) {
	created := time.Date(2024, 2, 27, 13, 44, 15, 0, time.UTC)
	given := []vmapi.Vm{
		{
			UUID:            "7b2a2d3c-0d8f-4e4b-9a53-9e0b8a3f6d01",
			Alias:           "web0",
			OwnerUUID:       "acct1",
			Brand:           "joyent",
			State:           "running",
			RAM:             512,
			CreateTimestamp: created,
			LastModified:    created,
			Nics: []vmapi.Nic{
				{IP: "10.0.0.5", Primary: true, NetworkUUID: "net0"},
			},
		},
	}

	var gotPath string
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(given)
	}))
	defer srv.Close()

	client, err := vmapi.NewHTTPClient(srv.URL, srv.Client())
	require.NoError(t, err)

	got, err := client.ListVms(context.Background(), vmapi.ListVmsInput{
		OwnerUUID:        "acct1",
		ExcludeDestroyed: true,
	})
	require.NoError(t, err)
	require.Equal(t, given, got)
	require.Equal(t, "/vms", gotPath)
	require.Equal(t, []string{"acct1"}, gotQuery["owner_uuid"])
	require.Equal(t, []string{"active"}, gotQuery["state"])
}

func TestHTTPClient_ListVms_OffTypeRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"uuid": "vm0", "owner_uuid": "acct1", "state": "running"},
			{"uuid": "vm1", "owner_uuid": "acct1", "state": "running", "docker": true,
			 "internal_metadata": {"docker:restartcount": 0, "docker:tty": true, "docker:cmd": ["sh"], "gone": null}},
			{"uuid": "vm2", "owner_uuid": "acct1", "state": "stopped", "ram": "lots"},
			42
		]`))
	}))
	defer srv.Close()

	client, err := vmapi.NewHTTPClient(srv.URL, srv.Client())
	require.NoError(t, err)

	got, err := client.ListVms(context.Background(), vmapi.ListVmsInput{OwnerUUID: "acct1"})
	require.NoError(t, err)
	require.Len(t, got, 4)

	require.Equal(t, "vm0", got[0].UUID)
	require.Empty(t, got[0].Malformed)

	require.Equal(t, "vm1", got[1].UUID)
	require.Empty(t, got[1].Malformed)
	require.Equal(t, vmapi.Metadata{
		"docker:restartcount": "0",
		"docker:tty":          "true",
		"docker:cmd":          `["sh"]`,
	}, got[1].InternalMetadata)

	require.Equal(t, "vm2", got[2].UUID)
	require.Equal(t, "stopped", got[2].State)
	require.Zero(t, got[2].RAM)
	require.NotEmpty(t, got[2].Malformed)

	require.Empty(t, got[3].UUID)
	require.NotEmpty(t, got[3].Malformed)
}

func TestHTTPClient_ListVms_Unavailable(t *testing.T) {
	testCases := map[string]http.HandlerFunc{
		"server-error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"not-json": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>oops</html>"))
		},
	}

	for name, tc := range testCases {
		handler := tc
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()

			client, err := vmapi.NewHTTPClient(srv.URL, srv.Client())
			require.NoError(t, err)

			_, err = client.ListVms(context.Background(), vmapi.ListVmsInput{})
			require.ErrorIs(t, err, vmapi.ErrUnavailable)
		})
	}
}

func TestHTTPClient_ListVms_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client, err := vmapi.NewHTTPClient(srv.URL, srv.Client())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.ListVms(ctx, vmapi.ListVmsInput{})
	require.ErrorIs(t, err, vmapi.ErrUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
