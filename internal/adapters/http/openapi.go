package httpadapter

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var openAPIYAML []byte

// Contract is the validated API description, pre-rendered as JSON for
// /openapi.json.
type Contract struct {
	Doc  *openapi3.T
	JSON []byte
}

func LoadContract(ctx context.Context) (*Contract, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromData(openAPIYAML)
	if err != nil {
		return nil, fmt.Errorf("load openapi contract: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate openapi contract: %w", err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("render openapi contract: %w", err)
	}
	return &Contract{Doc: doc, JSON: raw}, nil
}
