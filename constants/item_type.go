package constants

import (
	"strings"
)

// ItemType is the closed set of bill line-item categories. The stable
// strings are what the extraction adapters emit and what gets persisted.
type ItemType string

const (
	Consultation     ItemType = "CONSULTATION"
	RoomRent         ItemType = "ROOM_RENT"
	ICU              ItemType = "ICU"
	Procedure        ItemType = "PROCEDURE"
	Package          ItemType = "PACKAGE"
	Investigation    ItemType = "INVESTIGATION"
	Medicine         ItemType = "MEDICINE"
	Consumable       ItemType = "CONSUMABLE"
	Implant          ItemType = "IMPLANT"
	BloodTransfusion ItemType = "BLOOD_TRANSFUSION"
	OTCharges        ItemType = "OT_CHARGES"
	Dressing         ItemType = "DRESSING"
	Nursing          ItemType = "NURSING"
	Ambulance        ItemType = "AMBULANCE"
	OtherItem        ItemType = "OTHER"
)

var allItemTypes = []ItemType{
	Consultation,
	RoomRent,
	ICU,
	Procedure,
	Package,
	Investigation,
	Medicine,
	Consumable,
	Implant,
	BloodTransfusion,
	OTCharges,
	Dressing,
	Nursing,
	Ambulance,
	OtherItem,
}

// ItemTypesAsStrings returns the closed set for prompts and schema enums.
func ItemTypesAsStrings() []string {
	result := make([]string, len(allItemTypes))
	for i, t := range allItemTypes {
		result[i] = string(t)
	}
	return result
}

// RateCheckedTypes are the item types compared against the reference tariff.
var RateCheckedTypes = map[ItemType]struct{}{
	Procedure:     {},
	Package:       {},
	Investigation: {},
	Consultation:  {},
}

// PackageBundledTypes are charges covered by a bundled package rate; billing
// any of them separately alongside a PACKAGE item is double billing.
var PackageBundledTypes = map[ItemType]struct{}{
	RoomRent:      {},
	Consultation:  {},
	OTCharges:     {},
	Dressing:      {},
	Investigation: {},
	Medicine:      {},
	Consumable:    {},
	Nursing:       {},
}

// CanonicalItemType maps a free-form label from OCR/LLM output onto the
// closed set. The second return reports whether the label was recognized.
func CanonicalItemType(input string) (ItemType, bool) {
	if input == "" {
		return OtherItem, false
	}

	normalized := strings.ToUpper(strings.TrimSpace(input))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")

	synonyms := map[string]ItemType{
		"ROOM":           RoomRent,
		"BED_CHARGES":    RoomRent,
		"WARD_CHARGES":   RoomRent,
		"DOCTOR_FEE":     Consultation,
		"DOCTOR_VISIT":   Consultation,
		"SURGERY":        Procedure,
		"OPERATION":      Procedure,
		"OT":             OTCharges,
		"LAB":            Investigation,
		"LABORATORY":     Investigation,
		"PATHOLOGY":      Investigation,
		"RADIOLOGY":      Investigation,
		"PHARMACY":       Medicine,
		"DRUGS":          Medicine,
		"DISPOSABLE":     Consumable,
		"PROSTHESIS":     Implant,
		"BLOOD":          BloodTransfusion,
		"BLOOD_BANK":     BloodTransfusion,
		"CRITICAL_CARE":  ICU,
		"INTENSIVE_CARE": ICU,
		"MISC":           OtherItem,
		"MISCELLANEOUS":  OtherItem,
		"SUNDRY":         OtherItem,
	}

	if t, ok := synonyms[normalized]; ok {
		return t, true
	}

	for _, t := range allItemTypes {
		if normalized == string(t) {
			return t, true
		}
	}

	return OtherItem, false
}
