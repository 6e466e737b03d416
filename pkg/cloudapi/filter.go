package cloudapi

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sre-norns/cloudapi/pkg/tags"
	"github.com/sre-norns/cloudapi/pkg/vmapi"
)

// Machine types
const (
	TypeSmartMachine   = "smartmachine"
	TypeVirtualMachine = "virtualmachine"
)

var brandsOfType = map[string][]string{
	TypeSmartMachine:   {"joyent", "joyent-minimal", "lx"},
	TypeVirtualMachine: {"kvm", "bhyve"},
}

// TypeOfBrand returns machine type of a VM brand.
func TypeOfBrand(brand string) string {
	if slices.Contains(brandsOfType[TypeVirtualMachine], brand) {
		return TypeVirtualMachine
	}

	return TypeSmartMachine
}

func tagNameRequirement(errs *FieldErrors, expr string) (tags.Requirement, bool) {
	key, value, isEquality := strings.Cut(expr, "=")
	if key == "" {
		errs.add(ParamTagName, "tag name must not be empty")
		return tags.Requirement{}, false
	}

	op, values := tags.Exists, []string(nil)
	if isEquality {
		op, values = tags.Equals, []string{value}
	}

	req, err := tags.NewRequirement(key, op, values)
	if err != nil {
		errs.add(ParamTagName, "%v", err)
		return tags.Requirement{}, false
	}

	return req, true
}

func tagsSelector(errs *FieldErrors, query ListQuery) tags.Selector {
	var reqs []tags.Requirement
	if query.TagName != nil {
		if req, ok := tagNameRequirement(errs, *query.TagName); ok {
			reqs = append(reqs, req)
		}
	}

	for key, value := range query.Tags {
		req, err := tags.NewRequirement(key, tags.Equals, []string{value})
		if err != nil {
			errs.add(ParamTagPrefix+key, "%v", err)
			continue
		}
		reqs = append(reqs, req)
	}

	var expr tags.Selector
	if query.TagSelector != "" {
		s, err := tags.Parse(query.TagSelector)
		if err != nil {
			errs.add(ParamTags, "%v", err)
		} else {
			expr = s
		}
	}

	if len(reqs) == 0 && expr == nil {
		return nil
	}

	return tags.And(tags.NewSelector(reqs...), expr)
}

// Translate converts a listing query into VM API query.
// It checks values of every filter and reports all unsatisfiable ones as [FieldErrors].
func Translate(query ListQuery) (vmapi.ListVmsInput, error) {
	var errs FieldErrors
	result := vmapi.ListVmsInput{
		OwnerUUID:        query.Account,
		Alias:            query.Name,
		Brand:            query.Brand,
		Docker:           query.Docker,
		ExcludeDestroyed: !query.Tombstone,
	}

	if query.Type != "" {
		brands, ok := brandsOfType[query.Type]
		if !ok {
			errs.add(ParamType, "unknown machine type %q, expected one of %s or %s", query.Type, TypeSmartMachine, TypeVirtualMachine)
		}
		result.Brands = slices.Clone(brands)
	}

	if query.State != "" {
		states := UpstreamStates(query.State)
		if len(states) == 0 {
			errs.add(ParamState, "unknown state %q, expected one of %s", query.State, strings.Join(DisplayStates(), ", "))
		}
		result.States = states
		if query.State == StateDeleted {
			result.ExcludeDestroyed = false
		}
	}

	if query.Image != "" {
		if _, err := uuid.Parse(query.Image); err != nil {
			errs.add(ParamImage, "expected an image UUID, got %q", query.Image)
		}
		result.ImageUUID = query.Image
	}

	if query.Memory != nil {
		if *query.Memory < 0 {
			errs.add(ParamMemory, "must not be negative, got %d", *query.Memory)
		}
		memory := *query.Memory
		result.RAM = &memory
	}

	result.Tags = tagsSelector(&errs, query)

	if len(errs) > 0 {
		return vmapi.ListVmsInput{}, errs
	}

	return result, nil
}

// Fingerprint returns a digest of the filter set of a VM API query.
// Queries selecting the same VMs have equal fingerprints regardless of the order constraints were given in.
func Fingerprint(query vmapi.ListVmsInput) string {
	sorted := func(values []string) string {
		s := slices.Clone(values)
		slices.Sort(s)
		return strings.Join(s, ",")
	}

	var b strings.Builder
	field := func(key, value string) {
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(strconv.Quote(value))
		b.WriteByte(';')
	}

	field("owner", query.OwnerUUID)
	field("alias", query.Alias)
	field("brand", query.Brand)
	field("brands", sorted(query.Brands))
	field("image", query.ImageUUID)
	field("states", sorted(query.States))
	field("exclude_destroyed", strconv.FormatBool(query.ExcludeDestroyed))
	if query.RAM != nil {
		field("ram", strconv.FormatInt(*query.RAM, 10))
	}
	if query.Docker != nil {
		field("docker", strconv.FormatBool(*query.Docker))
	}
	if query.Tags != nil && !query.Tags.Empty() {
		reqs := make([]string, 0, len(query.Tags.Requirements()))
		for _, req := range query.Tags.Requirements() {
			values := req.Values().Sorted()
			quoted := make([]string, 0, len(values))
			for _, v := range values {
				quoted = append(quoted, strconv.Quote(v))
			}
			reqs = append(reqs, strconv.Quote(req.Key())+" "+string(req.Operator())+" ("+strings.Join(quoted, ",")+")")
		}
		field("tags", sorted(reqs))
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:16])
}
