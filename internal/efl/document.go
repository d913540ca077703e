package efl

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/watthive/eflengine/internal/rates"
)

// PlanDocument is the upstream envelope handed to this engine: identity
// fields plus the parsed rate representations and the disclosure text they
// came from. Storage and transport of the envelope are the caller's
// problem; this package only decodes and checks it.
type PlanDocument struct {
	PlanID        string               `json:"plan_id"`
	RepName       string               `json:"rep_name"`
	ProductName   string               `json:"product_name"`
	TDSPName      string               `json:"tdsp_name,omitempty"`
	RateStructure *rates.RateStructure `json:"rate_structure,omitempty"`
	PlanRules     *rates.PlanRules     `json:"plan_rules,omitempty"`
	EFLText       string               `json:"efl_text,omitempty"`
}

const planDocumentSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["plan_id", "rep_name", "product_name"],
  "properties": {
    "plan_id": {"type": "string", "minLength": 1},
    "rep_name": {"type": "string", "minLength": 1},
    "product_name": {"type": "string", "minLength": 1},
    "tdsp_name": {"type": "string"},
    "rate_structure": {
      "type": "object",
      "properties": {
        "type": {"enum": ["FIXED", "TIERED", "TIME_OF_USE", "UNKNOWN"]},
        "energy_rate_cents": {"type": "number", "minimum": 0},
        "base_monthly_fee_cents": {"type": "integer", "minimum": 0},
        "usage_tiers": {"type": "array", "items": {"type": "object"}},
        "tou_periods": {"type": "array", "items": {"type": "object"}},
        "bill_credits": {"type": "array", "items": {"type": "object"}},
        "avg_prices": {"type": "array", "items": {"type": "object"}}
      }
    },
    "plan_rules": {"type": "object"},
    "efl_text": {"type": "string"}
  }
}`

var planDocumentCompiled = mustCompileSchema("plan_document.schema.json", planDocumentSchema)

func mustCompileSchema(name, schema string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(schema)); err != nil {
		panic(fmt.Sprintf("add schema resource %s: %v", name, err))
	}
	compiled, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return compiled
}

// ParseDocument decodes and checks a plan document envelope. Schema
// validation catches shape problems with a pointer to the offending field;
// the rate model's own Validate calls catch semantic ones (overlapping
// tiers, conflicting structural shapes, bad clock hours).
func ParseDocument(raw []byte) (*PlanDocument, error) {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode plan document: %w", err)
	}
	if err := planDocumentCompiled.Validate(payload); err != nil {
		return nil, fmt.Errorf("plan document schema: %w", err)
	}

	var doc PlanDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode plan document: %w", err)
	}
	if doc.RateStructure != nil {
		if err := doc.RateStructure.Validate(); err != nil {
			return nil, fmt.Errorf("plan %s rate structure: %w", doc.PlanID, err)
		}
	}
	if doc.PlanRules != nil {
		if err := doc.PlanRules.Validate(); err != nil {
			return nil, fmt.Errorf("plan %s plan rules: %w", doc.PlanID, err)
		}
	}
	return &doc, nil
}
