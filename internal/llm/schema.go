package llm

import "github.com/medbillai/medbill/constants"

// BuildBillJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// We pass it to the model as a structured output constraint and also use it
// locally to validate what comes back.
func BuildBillJSONSchema() map[string]any {
	amount := map[string]any{"type": "number", "minimum": 0.0}
	dateProp := map[string]any{"type": "string", "pattern": `^\d{1,2}[./-]\d{1,2}[./-]\d{2,4}$|^\d{4}-\d{2}-\d{2}$`}

	patient := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"name":        map[string]any{"type": "string", "minLength": 1},
			"age":         map[string]any{"type": "string"},
			"gender":      map[string]any{"type": "string"},
			"uhid":        map[string]any{"type": "string"},
			"ip_number":   map[string]any{"type": "string"},
			"employee_id": map[string]any{"type": "string"},
		},
	}

	hospital := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"name":                map[string]any{"type": "string", "minLength": 1},
			"address":             map[string]any{"type": "string"},
			"city":                map[string]any{"type": "string"},
			"phone":               map[string]any{"type": "string"},
			"registration_number": map[string]any{"type": "string"},
		},
	}

	admission := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"admission_date":  dateProp,
			"discharge_date":  dateProp,
			"ward_type":       map[string]any{"type": "string"},
			"diagnosis":       map[string]any{"type": "string"},
			"procedures":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"treating_doctor": map[string]any{"type": "string"},
			"referral_date":   dateProp,
			"treatment_type":  map[string]any{"type": "string", "enum": []string{"OPD", "IPD", "DAYCARE", "DOMICILIARY"}},
		},
	}

	lineItem := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"type":        map[string]any{"type": "string", "enum": constants.ItemTypesAsStrings()},
			"description": map[string]any{"type": "string", "minLength": 1},
			"quantity":    map[string]any{"type": "integer", "minimum": 1},
			"unit_rate":   amount,
			"amount":      amount,
			"date":        dateProp,
		},
		"required": []string{"type", "description", "amount"},
	}

	props := map[string]any{
		"patient":      patient,
		"hospital":     hospital,
		"admission":    admission,
		"line_items":   map[string]any{"type": "array", "items": lineItem},
		"total_amount": amount,
		"discount":     amount,
		"net_amount":   amount,
		"advance_paid": amount,
		"balance_due":  amount,
		"bill_number":  map[string]any{"type": "string"},
		"bill_date":    dateProp,
		"confidence_scores": map[string]any{
			"type":                 "object",
			"additionalProperties": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
		},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             []string{"patient", "hospital", "total_amount"},
	}
}
