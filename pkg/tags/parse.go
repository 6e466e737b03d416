package tags

import (
	"fmt"

	"k8s.io/apimachinery/pkg/labels"
)

// Parse parses a label-selector expression, such as `role=web,env in (prod,qa),!deprecated`, into a [Selector].
// Syntax follows k8s label selectors. An empty expression selects everything.
func Parse(expr string) (Selector, error) {
	s, err := labels.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("error parsing tag selector: %w", err)
	}

	rules, selectable := s.Requirements()
	if !selectable {
		return nil, fmt.Errorf("tag selector %q is not selectable", expr)
	}

	reqs := make(Requirements, 0, len(rules))
	for _, rule := range rules {
		r, err := NewRequirement(rule.Key(), Operator(rule.Operator()), rule.Values().List())
		if err != nil {
			return nil, fmt.Errorf("tag selector requirement %q: %w", rule.Key(), err)
		}
		reqs = append(reqs, r)
	}

	return NewSelector(reqs...), nil
}
