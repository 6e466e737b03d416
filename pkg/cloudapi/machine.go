package cloudapi

import (
	"encoding/json"
	"time"

	"github.com/sre-norns/cloudapi/pkg/vmapi"
)

const credentialsMetadataKey = "credentials"

// Machine is a VM as presented to API clients.
type Machine struct {
	ID                 string            `json:"id" yaml:"id"`
	Name               string            `json:"name" yaml:"name"`
	Type               string            `json:"type" yaml:"type"`
	Brand              string            `json:"brand" yaml:"brand"`
	State              string            `json:"state" yaml:"state"`
	Image              string            `json:"image" yaml:"image"`
	IPs                []string          `json:"ips" yaml:"ips"`
	Memory             int64             `json:"memory" yaml:"memory"`
	Disk               int64             `json:"disk" yaml:"disk"`
	Metadata           map[string]string `json:"metadata" yaml:"metadata"`
	Tags               map[string]any    `json:"tags" yaml:"tags"`
	Created            time.Time         `json:"created" yaml:"created"`
	Updated            time.Time         `json:"updated" yaml:"updated"`
	Docker             bool              `json:"docker" yaml:"docker"`
	FirewallEnabled    bool              `json:"firewall_enabled" yaml:"firewall_enabled"`
	DeletionProtection bool              `json:"deletion_protection" yaml:"deletion_protection"`
	ComputeNode        string            `json:"compute_node,omitempty" yaml:"compute_node,omitempty"`
	Package            string            `json:"package" yaml:"package"`
	PrimaryIP          string            `json:"primaryIp,omitempty" yaml:"primaryIp,omitempty"`
	Networks           []string          `json:"networks" yaml:"networks"`

	// Credentials are only set when requested and the VM has any
	Credentials map[string]string `json:"credentials,omitempty" yaml:"credentials,omitempty"`
}

// MapOptions controls optional parts of a [Machine].
type MapOptions struct {
	Credentials bool
}

// Anomaly is a VM record value that could not be mapped faithfully.
// Anomalies do not fail a request, they are reported for operators to look into.
type Anomaly struct {
	VM     string
	Field  string
	Value  string
	Reason string
}

func isHardwareVM(vm vmapi.Vm) bool {
	return TypeOfBrand(vm.Brand) == TypeVirtualMachine
}

// ToMachine maps a VM API record into a [Machine].
// It never fails: values it can not map are replaced with safe defaults and reported as anomalies.
func ToMachine(vm vmapi.Vm, options MapOptions) (Machine, []Anomaly) {
	var anomalies []Anomaly
	if vm.Malformed != "" {
		anomalies = append(anomalies, Anomaly{
			VM:     vm.UUID,
			Field:  "record",
			Reason: "malformed VM record: " + vm.Malformed,
		})
	}

	state, ok := DisplayState(vm.State)
	if !ok {
		anomalies = append(anomalies, Anomaly{
			VM:     vm.UUID,
			Field:  "state",
			Value:  vm.State,
			Reason: "unknown VM state",
		})
	}

	m := Machine{
		ID:                 vm.UUID,
		Name:               vm.Alias,
		Type:               TypeOfBrand(vm.Brand),
		Brand:              vm.Brand,
		State:              state,
		Image:              vm.ImageUUID,
		IPs:                []string{},
		Memory:             vm.RAM,
		Disk:               vm.Quota * 1024,
		Metadata:           make(map[string]string, len(vm.CustomerMetadata)),
		Tags:               make(map[string]any, len(vm.Tags)),
		Created:            vm.CreateTimestamp.UTC(),
		Updated:            vm.LastModified.UTC(),
		Docker:             vm.Docker,
		FirewallEnabled:    vm.FirewallEnabled,
		DeletionProtection: vm.DeletionProtection,
		ComputeNode:        vm.ServerUUID,
		Package:            vm.BillingID,
		Networks:           []string{},
	}

	if isHardwareVM(vm) {
		m.Image = ""
		if len(vm.Disks) > 0 {
			m.Image = vm.Disks[0].ImageUUID
		}

		m.Disk = 0
		for _, disk := range vm.Disks {
			m.Disk += disk.Size
		}
	}

	for _, nic := range vm.Nics {
		if nic.IP != "" {
			m.IPs = append(m.IPs, nic.IP)
		}
		if nic.NetworkUUID != "" {
			m.Networks = append(m.Networks, nic.NetworkUUID)
		}
		if nic.Primary && m.PrimaryIP == "" {
			m.PrimaryIP = nic.IP
		}
	}

	for k, v := range vm.CustomerMetadata {
		m.Metadata[k] = v
	}
	for k, v := range vm.Tags {
		m.Tags[k] = v
	}

	if options.Credentials {
		if raw, ok := vm.InternalMetadata[credentialsMetadataKey]; ok {
			var creds map[string]string
			if err := json.Unmarshal([]byte(raw), &creds); err != nil {
				anomalies = append(anomalies, Anomaly{
					VM:     vm.UUID,
					Field:  credentialsMetadataKey,
					Reason: "malformed credentials: " + err.Error(),
				})
			} else if len(creds) > 0 {
				m.Credentials = creds
			}
		}
	}

	return m, anomalies
}

// sortKeyLess orders machines by creation time, then by ID.
func sortKeyLess(aCreated time.Time, aID string, bCreated time.Time, bID string) bool {
	if !aCreated.Equal(bCreated) {
		return aCreated.Before(bCreated)
	}

	return aID < bID
}
