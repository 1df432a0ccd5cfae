package llm

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/medbillai/medbill/constants"
)

var amountKeys = []string{"total_amount", "discount", "net_amount", "advance_paid", "balance_due"}

// StripCodeFences removes a ```json ... ``` wrapper if the model added one.
func StripCodeFences(raw []byte) []byte {
	s := bytes.TrimSpace(raw)
	if !bytes.HasPrefix(s, []byte("```")) {
		return s
	}
	if i := bytes.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = bytes.TrimSuffix(bytes.TrimSpace(s), []byte("```"))
	return bytes.TrimSpace(s)
}

// SanitizeOptionalFields removes or normalizes optional fields that don't meet
// the schema, so the overall document can still validate. Local models return
// nulls, string-typed amounts and off-taxonomy item types routinely; dropping
// an optional beats failing the extraction.
func SanitizeOptionalFields(doc []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, err
	}

	var dropped []string

	for _, k := range amountKeys {
		if v, ok := m[k]; ok {
			f, keep := coerceAmount(v)
			if !keep {
				delete(m, k)
				dropped = append(dropped, k)
				continue
			}
			m[k] = f
		}
	}

	for _, section := range []string{"patient", "hospital", "admission"} {
		if obj, ok := m[section].(map[string]any); ok {
			for k, v := range obj {
				switch t := v.(type) {
				case nil:
					delete(obj, k)
					dropped = append(dropped, section+"."+k)
				case string:
					if strings.TrimSpace(t) == "" || strings.EqualFold(t, "null") {
						delete(obj, k)
						dropped = append(dropped, section+"."+k)
					}
				case float64:
					// age sometimes comes back as a bare number
					obj[k] = strconv.FormatFloat(t, 'f', -1, 64)
				}
			}
		}
	}

	if items, ok := m["line_items"].([]any); ok {
		kept := make([]any, 0, len(items))
		for i, it := range items {
			obj, ok := it.(map[string]any)
			if !ok {
				dropped = append(dropped, "line_items["+strconv.Itoa(i)+"]")
				continue
			}
			if v, ok := obj["type"].(string); ok {
				canonical, _ := constants.CanonicalItemType(v)
				obj["type"] = string(canonical)
			}
			if v, ok := obj["quantity"].(float64); ok {
				if v < 1 {
					v = 1
				}
				obj["quantity"] = int(v)
			}
			for _, k := range []string{"unit_rate", "amount"} {
				if v, ok := obj[k]; ok {
					f, keep := coerceAmount(v)
					if !keep {
						delete(obj, k)
						continue
					}
					obj[k] = f
				}
			}
			if _, ok := obj["amount"]; !ok {
				dropped = append(dropped, "line_items["+strconv.Itoa(i)+"]")
				continue
			}
			kept = append(kept, obj)
		}
		m["line_items"] = kept
	}

	if scores, ok := m["confidence_scores"].(map[string]any); ok {
		for k, v := range scores {
			f, keep := coerceAmount(v)
			if !keep {
				delete(scores, k)
				dropped = append(dropped, "confidence_scores."+k)
				continue
			}
			if f > 1 {
				f = f / 100 // some models report percentages
			}
			scores[k] = f
		}
	}

	b, err := json.Marshal(m)
	if err != nil {
		return nil, nil, err
	}
	return b, dropped, nil
}

// coerceAmount turns "1,234.50", "Rs. 500" or a plain number into a float64.
func coerceAmount(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		if t < 0 {
			return 0, false
		}
		return t, true
	case string:
		s := strings.TrimSpace(t)
		s = strings.TrimPrefix(s, "₹")
		s = strings.TrimPrefix(strings.TrimPrefix(s, "Rs."), "Rs")
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
		if s == "" || strings.EqualFold(s, "null") {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f < 0 {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
