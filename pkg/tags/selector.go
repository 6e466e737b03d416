package tags

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Operator is a comparison a [Requirement] applies to a tag.
// Values are compatible with k8s.io/apimachinery/pkg/selection operators.
type Operator string

const (
	Exists       Operator = "exists"
	DoesNotExist Operator = "!"
	Equals       Operator = "="
	DoubleEquals Operator = "=="
	In           Operator = "in"
	NotEquals    Operator = "!="
	NotIn        Operator = "notin"
	GreaterThan  Operator = "gt"
	LessThan     Operator = "lt"
)

var (
	ErrInvalidOperator = errors.New("invalid operator")
	ErrEmptyKey        = errors.New("empty tag key")
	ErrMissingValue    = errors.New("operator requires a value")
)

func IsValidOperator(op Operator) bool {
	switch op {
	case DoesNotExist, Equals, DoubleEquals, In, NotEquals, NotIn, Exists, GreaterThan, LessThan:
		return true
	}
	return false
}

// Requirement is a single rule a tag set must satisfy.
type Requirement struct {
	key      string
	operator Operator
	values   StringSet
}

// Requirements is a collection of requirements, all of which must hold.
type Requirements []Requirement

func NewRequirement(key string, op Operator, values []string) (Requirement, error) {
	if key == "" {
		return Requirement{}, ErrEmptyKey
	}
	if !IsValidOperator(op) {
		return Requirement{}, fmt.Errorf("%w: %v", ErrInvalidOperator, op)
	}

	switch op {
	case Exists, DoesNotExist:
		values = nil
	default:
		if len(values) == 0 {
			return Requirement{}, fmt.Errorf("%w: %q %v", ErrMissingValue, key, op)
		}
	}

	return Requirement{
		key:      key,
		operator: op,
		values:   NewStringSet(values...),
	}, nil
}

func (r Requirement) Key() string {
	return r.key
}

func (r Requirement) Operator() Operator {
	return r.operator
}

func (r Requirement) Values() StringSet {
	return r.values
}

// Equality reports the single value r requires the tag to be equal to, if r is an equality requirement.
func (r Requirement) Equality() (string, bool) {
	switch r.operator {
	case Equals, DoubleEquals:
		return r.values.Any()
	case In:
		if len(r.values) == 1 {
			return r.values.Any()
		}
	}

	return "", false
}

func (r Requirement) Matches(tags Tags) bool {
	switch r.operator {
	case Exists:
		return tags.Has(r.key)
	case DoesNotExist:
		return !tags.Has(r.key)
	case In, Equals, DoubleEquals:
		return tags.Has(r.key) && r.values.Has(tags.Get(r.key))
	case NotIn, NotEquals:
		return !tags.Has(r.key) || !r.values.Has(tags.Get(r.key))
	case GreaterThan, LessThan:
		if !tags.Has(r.key) || len(r.values) != 1 {
			return false
		}

		lhs, err := strconv.ParseFloat(tags.Get(r.key), 64)
		if err != nil {
			return false
		}
		value, _ := r.values.Any()
		rhs, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return false
		}

		return (r.operator == GreaterThan && lhs > rhs) || (r.operator == LessThan && lhs < rhs)
	default:
		return false
	}
}

func (r Requirement) String() string {
	switch r.operator {
	case Exists:
		return r.key
	case DoesNotExist:
		return string(DoesNotExist) + r.key
	case Equals, DoubleEquals, NotEquals:
		value, _ := r.values.Any()
		return r.key + string(r.operator) + value
	case GreaterThan:
		return fmt.Sprintf("%v>%v", r.key, r.values.JoinSorted(","))
	case LessThan:
		return fmt.Sprintf("%v<%v", r.key, r.values.JoinSorted(","))
	default:
		return fmt.Sprintf("%v %v (%v)", r.key, r.operator, r.values.JoinSorted(","))
	}
}

// Selector matches tag sets against a collection of requirements.
type Selector interface {
	// Matches returns true if the selector matches given tag set.
	Matches(tags Tags) bool

	// Empty returns true if the selector has no requirements and thus matches everything.
	Empty() bool

	// Requirements exposes the rules of the selector, in canonical order.
	Requirements() Requirements

	// String returns canonical representation of the selector.
	String() string
}

type simpleSelector struct {
	requirements Requirements
}

// NewSelector returns a [Selector] that requires every given requirement to hold.
// Requirements are kept in canonical order so that equal selectors have equal string forms.
func NewSelector(requirements ...Requirement) Selector {
	reqs := make(Requirements, len(requirements))
	copy(reqs, requirements)
	sort.SliceStable(reqs, func(i, j int) bool {
		if reqs[i].key != reqs[j].key {
			return reqs[i].key < reqs[j].key
		}
		return reqs[i].String() < reqs[j].String()
	})

	return &simpleSelector{
		requirements: reqs,
	}
}

// And returns a selector that requires all requirements of all given selectors.
// Nil selectors are ignored.
func And(selectors ...Selector) Selector {
	var reqs Requirements
	for _, s := range selectors {
		if s == nil {
			continue
		}
		reqs = append(reqs, s.Requirements()...)
	}

	return NewSelector(reqs...)
}

func (s *simpleSelector) Matches(tags Tags) bool {
	for _, requirement := range s.requirements {
		if !requirement.Matches(tags) {
			return false
		}
	}

	return true
}

func (s *simpleSelector) Empty() bool {
	return len(s.requirements) == 0
}

func (s *simpleSelector) Requirements() Requirements {
	return s.requirements
}

func (s *simpleSelector) String() string {
	reqs := make([]string, 0, len(s.requirements))
	for _, req := range s.requirements {
		reqs = append(reqs, req.String())
	}
	return strings.Join(reqs, ",")
}
