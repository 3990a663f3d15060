// internal/server/schema.go
package server

import (
	"strings"

	"github.com/xeipuuv/gojsonschema"

	apperrors "policy-monitor/internal/common/errors"
)

// submitSchema gates the intake payload before it reaches the service.
// Field-level business checks (mode values, date parsing, catalog
// membership) stay in the service; this only rejects malformed shapes.
var submitSchema = map[string]interface{}{
	"type": "object",
	"required": []interface{}{
		"agency", "intermediaryEmail", "clientFirstName", "clientLastName",
		"policyType", "modeOfPayment", "policyDate",
	},
	"properties": map[string]interface{}{
		"agency":            map[string]interface{}{"type": "string", "minLength": 1},
		"submissionType":    map[string]interface{}{"type": "string"},
		"intermediaryName":  map[string]interface{}{"type": "string"},
		"intermediaryEmail": map[string]interface{}{"type": "string", "minLength": 3},
		"clientFirstName":   map[string]interface{}{"type": "string", "minLength": 1},
		"clientLastName":    map[string]interface{}{"type": "string", "minLength": 1},
		"clientEmail":       map[string]interface{}{"type": "string"},
		"policyType":        map[string]interface{}{"type": "string", "minLength": 1},
		"premiumPaid":       map[string]interface{}{"type": "number", "minimum": 0},
		"anp":               map[string]interface{}{"type": "number", "minimum": 0},
		"modeOfPayment":     map[string]interface{}{"type": "string"},
		"policyDate":        map[string]interface{}{"type": "string"},
		"serialNumber":      map[string]interface{}{"type": "string"},
	},
}

func validateSubmitPayload(payload map[string]interface{}) error {
	schemaLoader := gojsonschema.NewGoLoader(submitSchema)
	documentLoader := gojsonschema.NewGoLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return apperrors.NewValidationError("payload validation failed", err.Error())
	}
	if !result.Valid() {
		descs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			descs[i] = desc.String()
		}
		return apperrors.NewValidationError("payload validation failed", strings.Join(descs, "; "))
	}
	return nil
}
