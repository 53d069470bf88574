package models

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/farmsync/internal/common"
)

// Entity is implemented by every typed farm entity. The set is closed: the
// unexported method keeps other packages from adding kinds.
type Entity interface {
	Table() Table
	entity()
}

// EntityRef points at a record of a known kind.
type EntityRef struct {
	Kind Table  `json:"kind"`
	ID   string `json:"id"`
}

// NewEntityRef validates kind against the table registry.
func NewEntityRef(kind Table, id string) (EntityRef, error) {
	if _, err := LookupTable(kind); err != nil {
		return EntityRef{}, err
	}
	if id == "" {
		return EntityRef{}, fmt.Errorf("%w: empty reference id", common.ErrConstraint)
	}
	return EntityRef{Kind: kind, ID: id}, nil
}

type Plot struct {
	Name     string   `json:"name"`
	LengthM  float64  `json:"length_m"`
	WidthM   float64  `json:"width_m"`
	AreaSqm  *float64 `json:"area_sqm,omitempty"`
	SoilType *string  `json:"soil_type,omitempty"`
	Notes    *string  `json:"notes,omitempty"`
}

type Crop struct {
	Name           string  `json:"name"`
	Variety        *string `json:"variety,omitempty"`
	Family         *string `json:"family,omitempty"`
	DaysToMaturity *int    `json:"days_to_maturity,omitempty"`
}

type Season struct {
	Name      string  `json:"name"`
	StartDate string  `json:"start_date"`
	EndDate   *string `json:"end_date,omitempty"`
}

type Supplier struct {
	Name  string  `json:"name"`
	Phone *string `json:"phone,omitempty"`
	Email *string `json:"email,omitempty"`
}

type Customer struct {
	Name    string  `json:"name"`
	Phone   *string `json:"phone,omitempty"`
	Email   *string `json:"email,omitempty"`
	Address *string `json:"address,omitempty"`
}

type Flock struct {
	Name       string  `json:"name"`
	Breed      *string `json:"breed,omitempty"`
	Count      int     `json:"count"`
	AcquiredOn *string `json:"acquired_on,omitempty"`
}

// CropPlan ties a crop to a plot for a season.
type CropPlan struct {
	Name            string  `json:"name"`
	CropID          string  `json:"crop_id"`
	PlotID          string  `json:"plot_id"`
	SeasonID        *string `json:"season_id,omitempty"`
	PlantingDate    *string `json:"planting_date,omitempty"`
	ExpectedHarvest *string `json:"expected_harvest,omitempty"`
	Status          string  `json:"status"`
}

type CropPlanStage struct {
	CropPlanID string  `json:"crop_plan_id"`
	Name       string  `json:"name"`
	Order      int     `json:"order"`
	StartDate  *string `json:"start_date,omitempty"`
	EndDate    *string `json:"end_date,omitempty"`
}

type CropPlanTask struct {
	CropPlanID string  `json:"crop_plan_id"`
	StageID    *string `json:"stage_id,omitempty"`
	Title      string  `json:"title"`
	DueDate    *string `json:"due_date,omitempty"`
	Done       bool    `json:"done"`
}

type InputInventory struct {
	Name       string   `json:"name"`
	Category   string   `json:"category"`
	Quantity   float64  `json:"quantity"`
	Unit       string   `json:"unit"`
	SupplierID *string  `json:"supplier_id,omitempty"`
	UnitCost   *float64 `json:"unit_cost,omitempty"`
}

type GeneralExpense struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Category    *string `json:"category,omitempty"`
	Date        string  `json:"date"`
}

type Reminder struct {
	Title string     `json:"title"`
	DueAt string     `json:"due_at"`
	Done  bool       `json:"done"`
	Ref   *EntityRef `json:"ref,omitempty"`
}

// HarvestLog records produce taken from a crop plan or a flock. The source
// is kept flat so that source_id can be indexed.
type HarvestLog struct {
	SourceKind  Table   `json:"source_kind"`
	SourceID    string  `json:"source_id"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	HarvestedOn string  `json:"harvested_on"`
	CustomerID  *string `json:"customer_id,omitempty"`
}

func (h HarvestLog) Source() EntityRef { return EntityRef{Kind: h.SourceKind, ID: h.SourceID} }

func (h *HarvestLog) SetSource(ref EntityRef) {
	h.SourceKind = ref.Kind
	h.SourceID = ref.ID
}

func (Plot) Table() Table           { return TablePlots }
func (Crop) Table() Table           { return TableCrops }
func (Season) Table() Table         { return TableSeasons }
func (Supplier) Table() Table       { return TableSuppliers }
func (Customer) Table() Table       { return TableCustomers }
func (Flock) Table() Table          { return TableFlocks }
func (CropPlan) Table() Table       { return TableCropPlans }
func (CropPlanStage) Table() Table  { return TableCropPlanStages }
func (CropPlanTask) Table() Table   { return TableCropPlanTasks }
func (InputInventory) Table() Table { return TableInputInventory }
func (GeneralExpense) Table() Table { return TableGeneralExpenses }
func (Reminder) Table() Table       { return TableReminders }
func (HarvestLog) Table() Table     { return TableHarvestLogs }

func (Plot) entity()           {}
func (Crop) entity()           {}
func (Season) entity()         {}
func (Supplier) entity()       {}
func (Customer) entity()       {}
func (Flock) entity()          {}
func (CropPlan) entity()       {}
func (CropPlanStage) entity()  {}
func (CropPlanTask) entity()   {}
func (InputInventory) entity() {}
func (GeneralExpense) entity() {}
func (Reminder) entity()       {}
func (HarvestLog) entity()     {}

// Encode turns a typed entity into record fields.
func Encode(e Entity) (Fields, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.Table(), err)
	}
	var f Fields
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.Table(), err)
	}
	return f, nil
}

// Decode reads r's fields into T.
func Decode[T Entity](r Record) (T, error) {
	var v T
	b, err := json.Marshal(r.Fields)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return v, fmt.Errorf("decode %s/%s: %w", v.Table(), r.ID, err)
	}
	return v, nil
}

// Unwrap decodes r into the entity type that belongs to table.
func Unwrap(table Table, r Record) (Entity, error) {
	switch table {
	case TablePlots:
		return Decode[Plot](r)
	case TableCrops:
		return Decode[Crop](r)
	case TableSeasons:
		return Decode[Season](r)
	case TableSuppliers:
		return Decode[Supplier](r)
	case TableCustomers:
		return Decode[Customer](r)
	case TableFlocks:
		return Decode[Flock](r)
	case TableCropPlans:
		return Decode[CropPlan](r)
	case TableCropPlanStages:
		return Decode[CropPlanStage](r)
	case TableCropPlanTasks:
		return Decode[CropPlanTask](r)
	case TableInputInventory:
		return Decode[InputInventory](r)
	case TableGeneralExpenses:
		return Decode[GeneralExpense](r)
	case TableReminders:
		return Decode[Reminder](r)
	case TableHarvestLogs:
		return Decode[HarvestLog](r)
	default:
		return nil, fmt.Errorf("%w: unknown table %q", common.ErrConstraint, table)
	}
}
