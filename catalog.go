package server

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// ComplaintID identifies an ailment category a patient can present with.
type ComplaintID string

const (
	ComplaintFleas ComplaintID = "fleas"
	ComplaintCold  ComplaintID = "cold"
	ComplaintWeak  ComplaintID = "weak"
	ComplaintCough ComplaintID = "cough"
	ComplaintWound ComplaintID = "wound"
)

// ComplaintDefinition binds an ailment to its owner-facing flavour line and
// the medicines that cure it. Cure order is authoritative: when several cures
// are in the bag, the first catalog entry wins, not the first bag slot.
type ComplaintDefinition struct {
	ID    ComplaintID `json:"id"`
	Text  string      `json:"text"`
	Cures []string    `json:"cures"`
}

// MedicineDefinition describes one sellable clinic medicine.
type MedicineDefinition struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Price int    `json:"price"`
}

// FeeRule governs how a treatment fee is derived from a medicine price.
type FeeRule struct {
	Markup  float64 `json:"markup"`
	Consult int     `json:"consult"`
	Min     int     `json:"min"`
	Max     int     `json:"max"`
}

var defaultFeeRule = FeeRule{Markup: 1, Consult: 20, Min: 8, Max: 500}

// fallbackMedicinePrice is charged when a cure name is missing from the
// price list, so a data hole never produces a zero fee.
const fallbackMedicinePrice = 10

var complaintCatalog = buildComplaintCatalog()
var medicineCatalog = buildMedicineCatalog()

func buildComplaintCatalog() map[ComplaintID]ComplaintDefinition {
	defs := []ComplaintDefinition{
		mustDefineComplaint(ComplaintDefinition{
			ID:    ComplaintFleas,
			Text:  "Dok, hewan saya garuk-garuk terus.",
			Cures: []string{"Obat Kutu"},
		}),
		mustDefineComplaint(ComplaintDefinition{
			ID:    ComplaintCold,
			Text:  "Dok, dia bersin dan ingusan.",
			Cures: []string{"Obat Flu Hewan"},
		}),
		mustDefineComplaint(ComplaintDefinition{
			ID:    ComplaintWeak,
			Text:  "Dok, akhir-akhir ini dia keliatan lemas dan kurang tenaga.",
			Cures: []string{"Vitamin Hewan"},
		}),
		mustDefineComplaint(ComplaintDefinition{
			ID:    ComplaintCough,
			Text:  "Dok, dia batuk-batuk sejak kemarin.",
			Cures: []string{"Sirup Batuk Hewan"},
		}),
		mustDefineComplaint(ComplaintDefinition{
			ID:    ComplaintWound,
			Text:  "Dok, hewan saya jatuh dari pohon, kayaknya lecet.",
			Cures: []string{"Perban"},
		}),
	}

	catalog := make(map[ComplaintID]ComplaintDefinition, len(defs))
	for _, def := range defs {
		catalog[def.ID] = def
	}
	return catalog
}

func buildMedicineCatalog() map[string]MedicineDefinition {
	defs := []MedicineDefinition{
		{ID: 7, Name: "Obat Kutu", Price: 35},
		{ID: 8, Name: "Vitamin Hewan", Price: 45},
		{ID: 9, Name: "Sirup Batuk Hewan", Price: 38},
		{ID: 10, Name: "Obat Flu Hewan", Price: 42},
		{ID: 11, Name: "Perban", Price: 40},
	}

	catalog := make(map[string]MedicineDefinition, len(defs))
	for _, def := range defs {
		if def.Name == "" || def.Price <= 0 {
			panic(fmt.Sprintf("invalid medicine definition %+v", def))
		}
		catalog[strings.ToLower(def.Name)] = def
	}
	return catalog
}

func mustDefineComplaint(def ComplaintDefinition) ComplaintDefinition {
	if def.ID == "" {
		panic("complaint definition missing id")
	}
	if def.Text == "" {
		panic(fmt.Sprintf("complaint %s missing flavour text", def.ID))
	}
	return def
}

// ComplaintFor fetches the definition for a complaint id.
func ComplaintFor(id ComplaintID) (ComplaintDefinition, bool) {
	def, ok := complaintCatalog[id]
	return def, ok
}

// ComplaintText returns the owner's flavour line, with a placeholder when the
// id is unknown.
func ComplaintText(id ComplaintID) string {
	if def, ok := complaintCatalog[id]; ok {
		return def.Text
	}
	return "(Keluhan...)"
}

// CureNamesFor lists the valid medicines for a complaint in catalog order.
func CureNamesFor(id ComplaintID) []string {
	def, ok := complaintCatalog[id]
	if !ok || len(def.Cures) == 0 {
		return nil
	}
	return append([]string(nil), def.Cures...)
}

// SpawnPool returns the complaint ids eligible for random patient spawns,
// sorted for deterministic indexing with an injected RNG.
func SpawnPool() []ComplaintID {
	pool := make([]ComplaintID, 0, len(complaintCatalog))
	for id := range complaintCatalog {
		pool = append(pool, id)
	}
	sort.Slice(pool, func(i, j int) bool { return pool[i] < pool[j] })
	return pool
}

// MedicineDefinitions returns the sellable medicines sorted by catalog id.
func MedicineDefinitions() []MedicineDefinition {
	defs := make([]MedicineDefinition, 0, len(medicineCatalog))
	for _, def := range medicineCatalog {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs
}

var medicineEmojis = map[string]string{
	"obat kutu":         "🧴",
	"vitamin hewan":     "💊",
	"sirup batuk hewan": "🍯",
	"obat flu hewan":    "🤧",
	"perban":            "🩹",
}

// medicineEmoji picks the bag icon for a medicine; unknown names get a
// generic pill.
func medicineEmoji(name string) string {
	if emoji, ok := medicineEmojis[strings.ToLower(name)]; ok {
		return emoji
	}
	return "💊"
}

// MedicinePrice resolves the shop price for a medicine name,
// case-insensitively, falling back to a nominal price for unknown names.
func MedicinePrice(name string) int {
	if def, ok := medicineCatalog[strings.ToLower(name)]; ok {
		return def.Price
	}
	return fallbackMedicinePrice
}

// IsMedicine reports whether the name belongs to the medicine catalog.
func IsMedicine(name string) bool {
	_, ok := medicineCatalog[strings.ToLower(name)]
	return ok
}

// CatalogDocument is the serializable form of the whole clinic catalog,
// used by the schema generator and the guide endpoint.
type CatalogDocument struct {
	Complaints []ComplaintDefinition `json:"complaints"`
	Medicines  []MedicineDefinition  `json:"medicines"`
	Fee        FeeRule               `json:"fee"`
}

func DefaultCatalogDocument() CatalogDocument {
	pool := SpawnPool()
	complaints := make([]ComplaintDefinition, 0, len(pool))
	for _, id := range pool {
		if def, ok := ComplaintFor(id); ok {
			complaints = append(complaints, def)
		}
	}
	return CatalogDocument{
		Complaints: complaints,
		Medicines:  MedicineDefinitions(),
		Fee:        defaultFeeRule,
	}
}

// ComputeFee derives the treatment fee charged for dispensing a medicine:
// the catalog price with the clinic markup plus the flat consult fee,
// clamped to the rule's band. Rounding is half-away-from-zero throughout.
func ComputeFee(medicineName string) int {
	return defaultFeeRule.Fee(MedicinePrice(medicineName))
}

// Fee applies the rule to a base price.
func (r FeeRule) Fee(price int) int {
	raw := int(math.Round(float64(price)*(1+r.Markup))) + r.Consult
	return r.clamp(raw)
}

// ApplyExamOutcome modulates a base fee by the dosage-slider score:
// a near-perfect dose earns a 10% bonus, a decent one 5%, and a botched
// dose discounts the visit.
func ApplyExamOutcome(baseFee int, score int) int {
	return defaultFeeRule.applyExamOutcome(baseFee, score)
}

func (r FeeRule) applyExamOutcome(baseFee int, score int) int {
	var fee int
	switch {
	case score >= 90:
		fee = int(math.Round(float64(baseFee) * 1.10))
	case score >= 60:
		fee = int(math.Round(float64(baseFee) * 1.05))
	default:
		fee = int(math.Round(float64(baseFee) * 0.90))
	}
	return r.clamp(fee)
}

func (r FeeRule) clamp(fee int) int {
	if fee < r.Min {
		return r.Min
	}
	if fee > r.Max {
		return r.Max
	}
	return fee
}
