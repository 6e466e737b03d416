package cloudapi

import (
	"net/url"
	"strconv"
	"strings"
)

// Query parameters of the machines listing.
const (
	ParamType        = "type"
	ParamBrand       = "brand"
	ParamName        = "name"
	ParamImage       = "image"
	ParamState       = "state"
	ParamMemory      = "memory"
	ParamTombstone   = "tombstone"
	ParamLimit       = "limit"
	ParamOffset      = "offset"
	ParamToken       = "token"
	ParamTagName     = "tag_name"
	ParamTags        = "tags"
	ParamDocker      = "docker"
	ParamCredentials = "credentials"

	// ParamTagPrefix prefixes `tag.<key>=<value>` tag equality filters
	ParamTagPrefix = "tag."
)

// ListQuery is a parsed machines listing request.
// Empty or nil fields put no constraint on results.
type ListQuery struct {
	Account string

	Type  string
	Brand string
	Name  string
	Image string
	State string

	Memory      *int64
	Tombstone   bool
	Docker      *bool
	Credentials bool

	// TagName is either `key` to match presence of a tag or `key=value` to match its value.
	TagName *string
	// Tags are `tag.<key>=<value>` filters
	Tags map[string]string
	// TagSelector is a selector expression, such as `role=web,env in (prod,qa),!legacy`
	TagSelector string

	Limit  *int
	Offset *int
	Token  string
}

func parseBool(errs *FieldErrors, values url.Values, key string) *bool {
	if !values.Has(key) {
		return nil
	}

	v, err := strconv.ParseBool(values.Get(key))
	if err != nil {
		errs.add(key, "expected a boolean, got %q", values.Get(key))
		return nil
	}

	return &v
}

func parseInt(errs *FieldErrors, values url.Values, key string) *int64 {
	if !values.Has(key) {
		return nil
	}

	v, err := strconv.ParseInt(values.Get(key), 10, 64)
	if err != nil {
		errs.add(key, "expected an integer, got %q", values.Get(key))
		return nil
	}

	return &v
}

// ParseListQuery reads listing request query parameters.
// It checks the syntax of each parameter, reporting every malformed one at once.
// Fields that fail to parse are left empty, so the result is still usable alongside the returned error.
func ParseListQuery(values url.Values) (ListQuery, error) {
	var errs FieldErrors
	query := ListQuery{
		Type:        values.Get(ParamType),
		Brand:       values.Get(ParamBrand),
		Name:        values.Get(ParamName),
		Image:       values.Get(ParamImage),
		State:       values.Get(ParamState),
		TagSelector: values.Get(ParamTags),
		Token:       values.Get(ParamToken),
		Memory:      parseInt(&errs, values, ParamMemory),
		Docker:      parseBool(&errs, values, ParamDocker),
	}

	if v := parseBool(&errs, values, ParamTombstone); v != nil {
		query.Tombstone = *v
	}
	if v := parseBool(&errs, values, ParamCredentials); v != nil {
		query.Credentials = *v
	}

	if values.Has(ParamTagName) {
		v := values.Get(ParamTagName)
		query.TagName = &v
	}

	if v := parseInt(&errs, values, ParamLimit); v != nil {
		if *v <= 0 {
			errs.add(ParamLimit, "must be a positive integer, got %d", *v)
		} else {
			limit := int(min(*v, int64(maxPageSize)))
			query.Limit = &limit
		}
	}

	if v := parseInt(&errs, values, ParamOffset); v != nil {
		if *v < 0 {
			errs.add(ParamOffset, "must not be negative, got %d", *v)
		} else {
			offset := int(*v)
			query.Offset = &offset
		}
	}

	if values.Has(ParamOffset) && query.Token != "" {
		errs.add(ParamOffset, "can not be used together with %s", ParamToken)
	}

	for key := range values {
		tagKey, ok := strings.CutPrefix(key, ParamTagPrefix)
		if !ok {
			continue
		}

		if tagKey == "" {
			errs.add(key, "tag name must not be empty")
			continue
		}

		if query.Tags == nil {
			query.Tags = make(map[string]string)
		}
		query.Tags[tagKey] = values.Get(key)
	}

	return query, AsFieldErrorsOrNil(errs)
}
