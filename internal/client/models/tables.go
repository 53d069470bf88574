package models

import (
	"fmt"

	"github.com/dmitrijs2005/farmsync/internal/common"
)

// Table names one entity collection. Each has its own store table.
type Table string

const (
	TablePlots           Table = "plots"
	TableCrops           Table = "crops"
	TableSeasons         Table = "seasons"
	TableSuppliers       Table = "suppliers"
	TableCustomers       Table = "customers"
	TableFlocks          Table = "flocks"
	TableCropPlans       Table = "crop_plans"
	TableCropPlanStages  Table = "crop_plan_stages"
	TableCropPlanTasks   Table = "crop_plan_tasks"
	TableInputInventory  Table = "input_inventory"
	TableGeneralExpenses Table = "general_expenses"
	TableReminders       Table = "reminders"
	TableHarvestLogs     Table = "harvest_logs"
)

// TableSpec describes how a table is indexed and displayed.
type TableSpec struct {
	Name Table
	// Indexed lists the domain fields that have an expression index.
	Indexed []string
	// Label is the field shown when another record refers to this one.
	Label string
}

// Tables is ordered so that referenced entities come before the ones that
// refer to them. Push and pull walk it in this order.
var Tables = []TableSpec{
	{Name: TablePlots, Indexed: []string{"name"}, Label: "name"},
	{Name: TableCrops, Indexed: []string{"name"}, Label: "name"},
	{Name: TableSeasons, Indexed: []string{"name"}, Label: "name"},
	{Name: TableSuppliers, Indexed: []string{"name"}, Label: "name"},
	{Name: TableCustomers, Indexed: []string{"name"}, Label: "name"},
	{Name: TableFlocks, Indexed: []string{"name"}, Label: "name"},
	{Name: TableCropPlans, Indexed: []string{"name", "crop_id", "plot_id", "season_id"}, Label: "name"},
	{Name: TableCropPlanStages, Indexed: []string{"crop_plan_id"}, Label: "name"},
	{Name: TableCropPlanTasks, Indexed: []string{"crop_plan_id", "stage_id"}, Label: "title"},
	{Name: TableInputInventory, Indexed: []string{"name", "supplier_id"}, Label: "name"},
	{Name: TableGeneralExpenses, Indexed: []string{"date"}, Label: "description"},
	{Name: TableReminders, Indexed: []string{"due_at"}, Label: "title"},
	{Name: TableHarvestLogs, Indexed: []string{"source_id", "customer_id"}, Label: "harvested_on"},
}

var tableIndex = func() map[Table]TableSpec {
	m := make(map[Table]TableSpec, len(Tables))
	for _, t := range Tables {
		m[t.Name] = t
	}
	return m
}()

// LookupTable returns the TableSpec of a known table, or ErrConstraint.
func LookupTable(name Table) (TableSpec, error) {
	t, ok := tableIndex[name]
	if !ok {
		return TableSpec{}, fmt.Errorf("%w: unknown table %q", common.ErrConstraint, name)
	}
	return t, nil
}

// TableNames returns all table names in dependency order.
func TableNames() []Table {
	out := make([]Table, len(Tables))
	for i, t := range Tables {
		out[i] = t.Name
	}
	return out
}
