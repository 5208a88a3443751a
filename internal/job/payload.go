package job

import (
	"encoding/json"
	"fmt"
	"reflect"

	"revenue-balance/internal/core"

	"github.com/invopop/jsonschema"
	"github.com/shopspring/decimal"
)

// OrderPayload is the value handed from the map stage to the reduce stage. It is always
// serialized between stages so no state is shared by reference.
type OrderPayload struct {
	OrderID string              `json:"order_id" jsonschema_description:"Sales order internal id"`
	Result  *core.BalanceResult `json:"result" jsonschema_description:"Classified balance, or null when the order has no invoice activity"`
}

// NoActivity reports whether the order had no lines to classify.
func (p OrderPayload) NoActivity() bool { return p.Result == nil }

// EncodePayload serializes a payload for the stage store.
func EncodePayload(p OrderPayload) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload for order %s: %w", p.OrderID, err)
	}
	return b, nil
}

// DecodePayload parses a payload read back from the stage store.
func DecodePayload(b []byte) (OrderPayload, error) {
	var p OrderPayload
	if err := json.Unmarshal(b, &p); err != nil {
		return OrderPayload{}, fmt.Errorf("failed to decode payload: %w", err)
	}
	if p.OrderID == "" {
		return OrderPayload{}, fmt.Errorf("failed to decode payload: missing order_id")
	}
	return p, nil
}

// PayloadSchema returns the JSON Schema of OrderPayload. Decimals are encoded as strings.
func PayloadSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == reflect.TypeOf(decimal.Decimal{}) {
				return &jsonschema.Schema{Type: "string", Pattern: `^-?[0-9]+(\.[0-9]+)?$`}
			}
			return nil
		},
	}
	return reflector.Reflect(&OrderPayload{})
}
