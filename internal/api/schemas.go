package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "ideamarket/internal/common/errors"
	"ideamarket/internal/common/validation"
	"ideamarket/internal/models"
)

const maxBodyBytes = 1 << 20

func intPtr(n int) *int { return &n }

var stringList = &validation.Property{Type: "string"}

// nullableString accepts a string or null; null decodes to "".
var nullableString = validation.Property{AnyOf: []validation.Property{{Type: "string"}, {Type: "null"}}}

var notifySchema = validation.MustCompile(validation.JSONSchema{
	Type:     "object",
	Required: []string{"project", "rankedSellers"},
	Properties: map[string]validation.Property{
		"project": {
			Type:     "object",
			Required: []string{"id"},
			Properties: map[string]validation.Property{
				"id":       {Type: "string", MinLength: intPtr(1)},
				"title":    nullableString,
				"category": nullableString,
				"skills":   {AnyOf: []validation.Property{{Type: "array", Items: stringList}, {Type: "null"}}},
			},
		},
		"rankedSellers": {
			Type: "array",
			Items: &validation.Property{AnyOf: []validation.Property{{
				Type: "object",
				Properties: map[string]validation.Property{
					"sellerId": nullableString,
					"name":     nullableString,
					"email":    nullableString,
					"score":    {AnyOf: []validation.Property{{Type: "integer"}, {Type: "null"}}},
					"overlap":  {AnyOf: []validation.Property{{Type: "array", Items: stringList}, {Type: "null"}}},
				},
			}, {Type: "null"}}},
		},
		"draft": {Type: "boolean"},
	},
})

var offerSchema = validation.MustCompile(validation.JSONSchema{
	Type:     "object",
	Required: []string{"price"},
	Properties: map[string]validation.Property{
		"price":     {AnyOf: []validation.Property{{Type: "number"}, {Type: "string"}}},
		"note":      {Type: "string"},
		"sendEmail": {Type: "boolean"},
	},
})

type notifyRequest struct {
	Project       *models.Project       `json:"project"`
	RankedSellers []models.RankedSeller `json:"rankedSellers"`
	Draft         bool                  `json:"draft"`
}

type offerRequest struct {
	Price     json.RawMessage `json:"price"`
	Note      string          `json:"note"`
	SendEmail bool            `json:"sendEmail"`
}

// decodeBody reads a bounded body, checks it against schema and unmarshals
// it into dst. Every failure is an INVALID_PAYLOAD error.
func decodeBody(r *http.Request, schema *validation.Schema, dst interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return apperrors.NewInvalidPayloadError(fmt.Sprintf("read body: %v", err))
	}
	if len(body) > maxBodyBytes {
		return apperrors.NewInvalidPayloadError("body too large")
	}
	if len(body) == 0 {
		body = []byte("{}")
	}

	if res := schema.ValidateJSON(body); !res.Valid {
		return apperrors.NewInvalidPayloadError(res.Error())
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperrors.NewInvalidPayloadError(err.Error())
	}
	return nil
}
