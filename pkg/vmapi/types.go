package vmapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrUnavailable is returned when VM API can not be reached, times out or fails to answer a query.
	ErrUnavailable = errors.New("VM API unavailable")
)

// Client is the single VM API operation the gateway depends on.
// Implementations must honour ctx cancellation and must not retry beyond their own transport policy.
type Client interface {
	ListVms(ctx context.Context, query ListVmsInput) ([]Vm, error)
}

// Nic is a network interface of a VM.
type Nic struct {
	MAC         string `json:"mac,omitempty" yaml:"mac,omitempty"`
	IP          string `json:"ip,omitempty" yaml:"ip,omitempty"`
	Primary     bool   `json:"primary,omitempty" yaml:"primary,omitempty"`
	NetworkUUID string `json:"network_uuid,omitempty" yaml:"network_uuid,omitempty"`
}

// Disk is a virtual disk of a hardware VM. Size is in MiB.
type Disk struct {
	ImageUUID string `json:"image_uuid,omitempty" yaml:"image_uuid,omitempty"`
	Size      int64  `json:"size,omitempty" yaml:"size,omitempty"`
}

// Metadata is a key-value store of a VM.
// VM API stores values as strings, but records written by other tools may carry numbers or booleans.
// Those are kept in their JSON text form.
type Metadata map[string]string

func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*m = nil
		return nil
	}

	result := make(Metadata, len(raw))
	for key, value := range raw {
		var s string
		switch {
		case bytes.Equal(value, []byte("null")):
		case json.Unmarshal(value, &s) == nil:
			result[key] = s
		default:
			result[key] = string(value)
		}
	}

	*m = result
	return nil
}

// Vm is a raw VM record as returned by VM API.
type Vm struct {
	UUID      string `json:"uuid" yaml:"uuid"`
	Alias     string `json:"alias,omitempty" yaml:"alias,omitempty"`
	OwnerUUID string `json:"owner_uuid,omitempty" yaml:"owner_uuid,omitempty"`
	Brand     string `json:"brand,omitempty" yaml:"brand,omitempty"`
	State     string `json:"state,omitempty" yaml:"state,omitempty"`
	ImageUUID string `json:"image_uuid,omitempty" yaml:"image_uuid,omitempty"`

	// RAM is memory allocation in MiB
	RAM int64 `json:"ram,omitempty" yaml:"ram,omitempty"`
	// Quota is the zone dataset quota in GiB
	Quota int64  `json:"quota,omitempty" yaml:"quota,omitempty"`
	Disks []Disk `json:"disks,omitempty" yaml:"disks,omitempty"`
	Nics  []Nic  `json:"nics,omitempty" yaml:"nics,omitempty"`

	Tags             map[string]any `json:"tags,omitempty" yaml:"tags,omitempty"`
	CustomerMetadata Metadata       `json:"customer_metadata,omitempty" yaml:"customer_metadata,omitempty"`
	InternalMetadata Metadata       `json:"internal_metadata,omitempty" yaml:"internal_metadata,omitempty"`

	CreateTimestamp time.Time  `json:"create_timestamp" yaml:"create_timestamp"`
	LastModified    time.Time  `json:"last_modified" yaml:"last_modified"`
	Destroyed       *time.Time `json:"destroyed,omitempty" yaml:"destroyed,omitempty"`

	ServerUUID         string `json:"server_uuid,omitempty" yaml:"server_uuid,omitempty"`
	BillingID          string `json:"billing_id,omitempty" yaml:"billing_id,omitempty"`
	Docker             bool   `json:"docker,omitempty" yaml:"docker,omitempty"`
	FirewallEnabled    bool   `json:"firewall_enabled,omitempty" yaml:"firewall_enabled,omitempty"`
	DeletionProtection bool   `json:"deletion_protection,omitempty" yaml:"deletion_protection,omitempty"`

	// Malformed is set when the record could not be decoded completely.
	// Fields that failed to decode keep their zero values.
	Malformed string `json:"-" yaml:"-"`
}
