package cloudapi_test

import (
	"net/url"
	"testing"

	"github.com/sre-norns/cloudapi/pkg/cloudapi"
	"github.com/stretchr/testify/require"
)

func launderInt(v int) *int       { return &v }
func launderInt64(v int64) *int64 { return &v }
func launderBool(v bool) *bool    { return &v }
func launderStr(v string) *string { return &v }

func TestParseListQuery(t *testing.T) {
	testCases := map[string]struct {
		given  string
		expect cloudapi.ListQuery
	}{
		"empty": {
			given:  "",
			expect: cloudapi.ListQuery{},
		},
		"filters": {
			given: "type=smartmachine&brand=lx&name=web0&image=2b683a82-a066-11e3-97ab-2faa44701c5a&state=running&memory=512",
			expect: cloudapi.ListQuery{
				Type:   "smartmachine",
				Brand:  "lx",
				Name:   "web0",
				Image:  "2b683a82-a066-11e3-97ab-2faa44701c5a",
				State:  "running",
				Memory: launderInt64(512),
			},
		},
		"booleans": {
			given: "tombstone=true&docker=false&credentials=1",
			expect: cloudapi.ListQuery{
				Tombstone:   true,
				Docker:      launderBool(false),
				Credentials: true,
			},
		},
		"pagination": {
			given: "limit=20&offset=40",
			expect: cloudapi.ListQuery{
				Limit:  launderInt(20),
				Offset: launderInt(40),
			},
		},
		"token": {
			given: "limit=2&token=abc",
			expect: cloudapi.ListQuery{
				Limit: launderInt(2),
				Token: "abc",
			},
		},
		"empty-token-with-offset": {
			given: "offset=2&token=",
			expect: cloudapi.ListQuery{
				Offset: launderInt(2),
			},
		},
		"tags": {
			given: "tag_name=role&tag.env=prod&tag.tier=web&tags=" + url.QueryEscape("replicas>2,!legacy"),
			expect: cloudapi.ListQuery{
				TagName:     launderStr("role"),
				Tags:        map[string]string{"env": "prod", "tier": "web"},
				TagSelector: "replicas>2,!legacy",
			},
		},
		"empty-tag-name-is-kept-for-validation": {
			given: "tag_name=",
			expect: cloudapi.ListQuery{
				TagName: launderStr(""),
			},
		},
	}

	for name, tc := range testCases {
		test := tc
		t.Run(name, func(t *testing.T) {
			values, err := url.ParseQuery(test.given)
			require.NoError(t, err)

			got, err := cloudapi.ParseListQuery(values)
			require.NoError(t, err)
			require.Equal(t, test.expect, got)
		})
	}
}

func TestParseListQuery_Errors(t *testing.T) {
	testCases := map[string]struct {
		given  string
		expect []string
	}{
		"memory-not-a-number": {
			given:  "memory=lots",
			expect: []string{"memory"},
		},
		"limit-zero": {
			given:  "limit=0",
			expect: []string{"limit"},
		},
		"limit-negative": {
			given:  "limit=-3",
			expect: []string{"limit"},
		},
		"limit-not-a-number": {
			given:  "limit=ten",
			expect: []string{"limit"},
		},
		"offset-negative": {
			given:  "offset=-1",
			expect: []string{"offset"},
		},
		"offset-and-token": {
			given:  "offset=2&token=abc",
			expect: []string{"offset"},
		},
		"not-a-boolean": {
			given:  "tombstone=maybe",
			expect: []string{"tombstone"},
		},
		"nameless-tag": {
			given:  "tag.=x",
			expect: []string{"tag."},
		},
		"every-field-is-reported": {
			given:  "memory=x&docker=y&credentials=z&limit=0",
			expect: []string{"memory", "docker", "credentials", "limit"},
		},
	}

	for name, tc := range testCases {
		test := tc
		t.Run(name, func(t *testing.T) {
			values, err := url.ParseQuery(test.given)
			require.NoError(t, err)

			_, err = cloudapi.ParseListQuery(values)
			require.Error(t, err)

			var fieldErrs cloudapi.FieldErrors
			require.ErrorAs(t, err, &fieldErrs)
			require.ElementsMatch(t, test.expect, fieldErrs.Fields())
			for _, field := range test.expect {
				require.Contains(t, err.Error(), field)
			}
			require.Equal(t, cloudapi.InvalidFilter, cloudapi.KindOf(err))
		})
	}
}

func TestParseListQuery_LimitAboveMaxIsKept(t *testing.T) {
	got, err := cloudapi.ParseListQuery(url.Values{"limit": {"5000"}})
	require.NoError(t, err)
	require.Equal(t, launderInt(5000), got.Limit)
}
