package vmapi_test

import (
	"net/url"
	"testing"
	"time"

	"github.com/sre-norns/cloudapi/pkg/tags"
	"github.com/sre-norns/cloudapi/pkg/vmapi"
	"github.com/stretchr/testify/require"
)

func mustParseTags(t *testing.T, expr string) tags.Selector {
	s, err := tags.Parse(expr)
	require.NoError(t, err)
	return s
}

func int64p(v int64) *int64 { return &v }
func boolp(v bool) *bool    { return &v }

func TestListVmsInput_Values(t *testing.T) {
	testCases := map[string]struct {
		given  vmapi.ListVmsInput
		expect url.Values
	}{
		"empty": {
			expect: url.Values{},
		},
		"scalars": {
			given: vmapi.ListVmsInput{
				OwnerUUID: "acct1",
				Alias:     "web0",
				Brand:     "joyent",
				ImageUUID: "2b683a82-a066-11e3-97ab-2faa44701c5a",
				RAM:       int64p(1024),
				Docker:    boolp(false),
			},
			expect: url.Values{
				"owner_uuid": {"acct1"},
				"alias":      {"web0"},
				"brand":      {"joyent"},
				"image_uuid": {"2b683a82-a066-11e3-97ab-2faa44701c5a"},
				"ram":        {"1024"},
				"docker":     {"false"},
			},
		},
		"exclude-destroyed": {
			given: vmapi.ListVmsInput{
				ExcludeDestroyed: true,
			},
			expect: url.Values{
				"state": {"active"},
			},
		},
		"single-state-wins-over-exclusion": {
			given: vmapi.ListVmsInput{
				States:           []string{"running"},
				ExcludeDestroyed: true,
			},
			expect: url.Values{
				"state": {"running"},
			},
		},
		"multi-valued-predicate": {
			given: vmapi.ListVmsInput{
				Brands: []string{"kvm", "bhyve"},
				States: []string{"stopped", "off"},
			},
			expect: url.Values{
				"predicate": {`{"and":[{"or":[{"eq":["brand","kvm"]},{"eq":["brand","bhyve"]}]},{"or":[{"eq":["state","stopped"]},{"eq":["state","off"]}]}]}`},
			},
		},
		"tags-equality-only": {
			given: vmapi.ListVmsInput{
				Tags: mustParseTags(t, "role=web,env in (prod),!deprecated,tier in (a,b)"),
			},
			expect: url.Values{
				"tag.role": {"web"},
				"tag.env":  {"prod"},
			},
		},
	}

	for name, tc := range testCases {
		test := tc
		t.Run(name, func(t *testing.T) {
			got, err := test.given.Values()
			require.NoError(t, err)
			require.Equal(t, test.expect, got)
		})
	}
}

func TestListVmsInput_Matches(t *testing.T) {
	vm := vmapi.Vm{
		UUID:            "7b2a2d3c-0d8f-4e4b-9a53-9e0b8a3f6d01",
		Alias:           "web0",
		OwnerUUID:       "acct1",
		Brand:           "joyent",
		State:           "running",
		RAM:             512,
		Tags:            map[string]any{"role": "web", "replicas": 3},
		CreateTimestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	testCases := map[string]struct {
		given  vmapi.ListVmsInput
		expect bool
	}{
		"everything":      {given: vmapi.ListVmsInput{}, expect: true},
		"owner":           {given: vmapi.ListVmsInput{OwnerUUID: "acct1"}, expect: true},
		"other-owner":     {given: vmapi.ListVmsInput{OwnerUUID: "acct2"}, expect: false},
		"brands":          {given: vmapi.ListVmsInput{Brands: []string{"kvm", "bhyve"}}, expect: false},
		"states":          {given: vmapi.ListVmsInput{States: []string{"running", "ready"}}, expect: true},
		"ram-mismatch":    {given: vmapi.ListVmsInput{RAM: int64p(1024)}, expect: false},
		"docker-mismatch": {given: vmapi.ListVmsInput{Docker: boolp(true)}, expect: false},
		"tags":            {given: vmapi.ListVmsInput{Tags: mustParseTags(t, "role=web,replicas>2")}, expect: true},
		"tags-mismatch":   {given: vmapi.ListVmsInput{Tags: mustParseTags(t, "role=db")}, expect: false},
	}

	for name, tc := range testCases {
		test := tc
		t.Run(name, func(t *testing.T) {
			require.Equal(t, test.expect, test.given.Matches(vm))
		})
	}
}

func TestListVmsInput_MatchesTombstones(t *testing.T) {
	destroyed := vmapi.Vm{UUID: "x", State: vmapi.StateDestroyed}

	require.True(t, vmapi.ListVmsInput{}.Matches(destroyed))
	require.False(t, vmapi.ListVmsInput{ExcludeDestroyed: true}.Matches(destroyed))
	require.True(t, vmapi.ListVmsInput{ExcludeDestroyed: true, States: []string{vmapi.StateDestroyed}}.Matches(destroyed))
}
