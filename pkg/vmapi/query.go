package vmapi

import (
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strconv"

	"github.com/sre-norns/cloudapi/pkg/tags"
)

// StateDestroyed is the VM API state of a deleted VM that is still kept around as a tombstone.
const StateDestroyed = "destroyed"

// ListVmsInput is a VM API query.
// Zero value of a field means no constraint on that dimension.
type ListVmsInput struct {
	OwnerUUID string
	Alias     string
	Brand     string
	// Brands restricts results to any of the brands listed
	Brands    []string
	ImageUUID string
	// States restricts results to any of the VM API states listed
	States []string
	// ExcludeDestroyed drops tombstone VMs if no explicit States are given
	ExcludeDestroyed bool
	RAM              *int64
	Docker           *bool
	Tags             tags.Selector
}

func anyOf(values []string, value string) bool {
	return len(values) == 0 || slices.Contains(values, value)
}

// Matches evaluates the query against a single VM record.
// It is used by backends that can not express every constraint natively.
func (in ListVmsInput) Matches(vm Vm) bool {
	switch {
	case in.OwnerUUID != "" && vm.OwnerUUID != in.OwnerUUID,
		in.Alias != "" && vm.Alias != in.Alias,
		in.Brand != "" && vm.Brand != in.Brand,
		in.ImageUUID != "" && vm.ImageUUID != in.ImageUUID,
		!anyOf(in.Brands, vm.Brand),
		!anyOf(in.States, vm.State),
		len(in.States) == 0 && in.ExcludeDestroyed && vm.State == StateDestroyed,
		in.RAM != nil && vm.RAM != *in.RAM,
		in.Docker != nil && vm.Docker != *in.Docker:
		return false
	}

	if in.Tags != nil && !in.Tags.Matches(tags.FromValues(vm.Tags)) {
		return false
	}

	return true
}

type predicate map[string]any

func eqAny(field string, values []string) predicate {
	if len(values) == 1 {
		return predicate{"eq": []string{field, values[0]}}
	}

	ors := make([]predicate, 0, len(values))
	for _, v := range values {
		ors = append(ors, predicate{"eq": []string{field, v}})
	}
	return predicate{"or": ors}
}

// Values encodes the query into VM API `GET /vms` query parameters.
// Single-valued constraints use plain parameters; multi-valued ones are expressed as a JSON `predicate`.
// Only equality tag requirements are sent; callers are expected to apply the full tag selector to results.
func (in ListVmsInput) Values() (url.Values, error) {
	q := url.Values{}
	set := func(key, value string) {
		if value != "" {
			q.Set(key, value)
		}
	}

	set("owner_uuid", in.OwnerUUID)
	set("alias", in.Alias)
	set("brand", in.Brand)
	set("image_uuid", in.ImageUUID)
	if in.RAM != nil {
		q.Set("ram", strconv.FormatInt(*in.RAM, 10))
	}
	if in.Docker != nil {
		q.Set("docker", strconv.FormatBool(*in.Docker))
	}

	var preds []predicate
	if len(in.Brands) > 0 {
		preds = append(preds, eqAny("brand", in.Brands))
	}

	switch {
	case len(in.States) == 1:
		q.Set("state", in.States[0])
	case len(in.States) > 1:
		preds = append(preds, eqAny("state", in.States))
	case in.ExcludeDestroyed:
		q.Set("state", "active")
	}

	if in.Tags != nil {
		for _, req := range in.Tags.Requirements() {
			if value, ok := req.Equality(); ok {
				q.Set("tag."+req.Key(), value)
			}
		}
	}

	if len(preds) > 0 {
		var doc predicate
		if len(preds) == 1 {
			doc = preds[0]
		} else {
			doc = predicate{"and": preds}
		}

		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to encode VM API predicate: %w", err)
		}
		q.Set("predicate", string(raw))
	}

	return q, nil
}
