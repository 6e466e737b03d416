package dbstore

import (
	"context"
	"fmt"
	"io"

	"github.com/sre-norns/cloudapi/pkg/vmapi"
	"gopkg.in/yaml.v3"
)

// ReadFixtures decodes a YAML sequence of VM records.
func ReadFixtures(r io.Reader) ([]vmapi.Vm, error) {
	var vms []vmapi.Vm
	if err := yaml.NewDecoder(r).Decode(&vms); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode VM fixtures: %w", err)
	}

	for i, vm := range vms {
		if vm.UUID == "" {
			return nil, fmt.Errorf("VM fixture #%d has no uuid", i)
		}
	}

	return vms, nil
}

// Load reads VM records from r and saves them into the inventory, returning the number of records stored.
func (s *Inventory) Load(ctx context.Context, r io.Reader) (int, error) {
	vms, err := ReadFixtures(r)
	if err != nil {
		return 0, err
	}

	if err := s.Save(ctx, vms...); err != nil {
		return 0, fmt.Errorf("failed to save VM fixtures: %w", err)
	}

	return len(vms), nil
}
