package dbstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sre-norns/cloudapi/pkg/tags"
	"github.com/sre-norns/cloudapi/pkg/vmapi"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNoDBObject error is returned by NewInventory when nil `db` argument is passed
	ErrNoDBObject = errors.New("nil DB connection passed")
)

const tagsColumn = "tags"

// vmRow is how a VM record is kept in the inventory DB.
type vmRow struct {
	UUID      string `gorm:"primaryKey"`
	Alias     string `gorm:"index"`
	OwnerUUID string `gorm:"index"`
	Brand     string
	State     string `gorm:"index"`
	ImageUUID string

	RAM   int64
	Quota int64
	Disks []vmapi.Disk `gorm:"serializer:json"`
	Nics  []vmapi.Nic  `gorm:"serializer:json"`

	Tags             map[string]any    `gorm:"serializer:json"`
	CustomerMetadata map[string]string `gorm:"serializer:json"`
	InternalMetadata map[string]string `gorm:"serializer:json"`

	CreateTimestamp time.Time `gorm:"index"`
	LastModified    time.Time
	Destroyed       *time.Time

	ServerUUID         string
	BillingID          string
	Docker             bool
	FirewallEnabled    bool
	DeletionProtection bool
}

func (vmRow) TableName() string {
	return "vms"
}

func newVMRow(vm vmapi.Vm) vmRow {
	return vmRow{
		UUID:               vm.UUID,
		Alias:              vm.Alias,
		OwnerUUID:          vm.OwnerUUID,
		Brand:              vm.Brand,
		State:              vm.State,
		ImageUUID:          vm.ImageUUID,
		RAM:                vm.RAM,
		Quota:              vm.Quota,
		Disks:              vm.Disks,
		Nics:               vm.Nics,
		Tags:               vm.Tags,
		CustomerMetadata:   vm.CustomerMetadata,
		InternalMetadata:   vm.InternalMetadata,
		CreateTimestamp:    vm.CreateTimestamp.UTC(),
		LastModified:       vm.LastModified.UTC(),
		Destroyed:          vm.Destroyed,
		ServerUUID:         vm.ServerUUID,
		BillingID:          vm.BillingID,
		Docker:             vm.Docker,
		FirewallEnabled:    vm.FirewallEnabled,
		DeletionProtection: vm.DeletionProtection,
	}
}

func (r vmRow) vm() vmapi.Vm {
	return vmapi.Vm{
		UUID:               r.UUID,
		Alias:              r.Alias,
		OwnerUUID:          r.OwnerUUID,
		Brand:              r.Brand,
		State:              r.State,
		ImageUUID:          r.ImageUUID,
		RAM:                r.RAM,
		Quota:              r.Quota,
		Disks:              r.Disks,
		Nics:               r.Nics,
		Tags:               r.Tags,
		CustomerMetadata:   r.CustomerMetadata,
		InternalMetadata:   r.InternalMetadata,
		CreateTimestamp:    r.CreateTimestamp.UTC(),
		LastModified:       r.LastModified.UTC(),
		Destroyed:          r.Destroyed,
		ServerUUID:         r.ServerUUID,
		BillingID:          r.BillingID,
		Docker:             r.Docker,
		FirewallEnabled:    r.FirewallEnabled,
		DeletionProtection: r.DeletionProtection,
	}
}

// Inventory is a [vmapi.Client] serving VM records kept in a SQL DB.
// Request handling only ever reads from it, records are put in place with [Inventory.Save].
type Inventory struct {
	db *gorm.DB
}

// NewInventory creates a new instance of Inventory wrapping gorm DB.
func NewInventory(db *gorm.DB) (*Inventory, error) {
	if db == nil {
		return nil, ErrNoDBObject
	}

	return &Inventory{
		db: db,
	}, nil
}

// Migrate creates or updates inventory tables.
func (s *Inventory) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&vmRow{})
}

// Ping uses SQL DB PingContext to check if the DB is able to process requests.
func (s *Inventory) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to access DB interface: %w", err)
	}

	return sqlDB.PingContext(ctx)
}

// Save inserts VM records, replacing existing records with the same UUID.
func (s *Inventory) Save(ctx context.Context, vms ...vmapi.Vm) error {
	if len(vms) == 0 {
		return nil
	}

	rows := make([]vmRow, 0, len(vms))
	for _, vm := range vms {
		rows = append(rows, newVMRow(vm))
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rows).Error
}

// ListVms implements [vmapi.Client].
// Constraints are pushed into the SQL query where possible; the tag selector is then applied to every row in full.
func (s *Inventory) ListVms(ctx context.Context, query vmapi.ListVmsInput) ([]vmapi.Vm, error) {
	tx := withQuery(s.db.WithContext(ctx).Model(&vmRow{}), query)

	var rows []vmRow
	rtx := tx.Order(clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: "create_timestamp"}},
		{Column: clause.Column{Name: "uuid"}},
	}}).Find(&rows)
	if rtx.Error != nil {
		return nil, fmt.Errorf("%w: %w", vmapi.ErrUnavailable, rtx.Error)
	}

	result := make([]vmapi.Vm, 0, len(rows))
	for _, row := range rows {
		vm := row.vm()
		if query.Matches(vm) {
			result = append(result, vm)
		}
	}

	return result, nil
}

func anyValues(values []string) []any {
	result := make([]any, 0, len(values))
	for _, v := range values {
		result = append(result, v)
	}
	return result
}

func withQuery(tx *gorm.DB, query vmapi.ListVmsInput) *gorm.DB {
	eq := func(column string, value any) {
		tx = tx.Where(clause.Eq{Column: clause.Column{Name: column}, Value: value})
	}

	if query.OwnerUUID != "" {
		eq("owner_uuid", query.OwnerUUID)
	}
	if query.Alias != "" {
		eq("alias", query.Alias)
	}
	if query.Brand != "" {
		eq("brand", query.Brand)
	}
	if query.ImageUUID != "" {
		eq("image_uuid", query.ImageUUID)
	}
	if query.RAM != nil {
		eq("ram", *query.RAM)
	}
	if query.Docker != nil {
		eq("docker", *query.Docker)
	}

	if len(query.Brands) > 0 {
		tx = tx.Where(clause.IN{Column: clause.Column{Name: "brand"}, Values: anyValues(query.Brands)})
	}

	if len(query.States) > 0 {
		tx = tx.Where(clause.IN{Column: clause.Column{Name: "state"}, Values: anyValues(query.States)})
	} else if query.ExcludeDestroyed {
		tx = tx.Where(clause.Neq{Column: clause.Column{Name: "state"}, Value: vmapi.StateDestroyed})
	}

	return withTags(tx, query.Tags)
}

// withTags narrows the query down to rows that have every tag key the selector requires to be present.
// Values are compared after loading, as tag values of any JSON type are matched by their string form.
func withTags(tx *gorm.DB, selector tags.Selector) *gorm.DB {
	if selector == nil || selector.Empty() || !supportsTagQuery(tx.Dialector.Name()) {
		return tx
	}

	for _, req := range selector.Requirements() {
		switch req.Operator() {
		case tags.Exists, tags.Equals, tags.DoubleEquals, tags.In, tags.GreaterThan, tags.LessThan:
		default:
			continue
		}

		if _, ok := jsonPathKey(req.Key()); !ok {
			continue
		}

		tx = tx.Where(tagKeyExists{column: tagsColumn, key: req.Key()})
	}

	return tx
}
