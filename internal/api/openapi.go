package api

import (
	"github.com/mattjoyce/inboxd/internal/message"
	"github.com/mattjoyce/inboxd/internal/store"
)

// buildOpenAPIDoc returns an OpenAPI 3.1 document describing the service.
func buildOpenAPIDoc() map[string]any {
	errorRef := map[string]any{"$ref": "#/components/schemas/Error"}
	jsonContent := func(schema any) map[string]any {
		return map[string]any{"application/json": map[string]any{"schema": schema}}
	}
	errResponse := func(desc string) map[string]any {
		return map[string]any{"description": desc, "content": jsonContent(errorRef)}
	}

	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   "inboxd",
			"version": "1.0",
		},
		"paths": map[string]any{
			"/webhook": map[string]any{
				"post": map[string]any{
					"operationId": "ingestMessage",
					"summary":     "Ingest a signed message",
					"parameters": []any{map[string]any{
						"name":        "X-Signature",
						"in":          "header",
						"required":    true,
						"description": "Hex HMAC-SHA256 of the raw body",
						"schema":      map[string]any{"type": "string"},
					}},
					"requestBody": map[string]any{
						"required": true,
						"content":  jsonContent(map[string]any{"$ref": "#/components/schemas/MessageIn"}),
					},
					"responses": map[string]any{
						"200": map[string]any{"description": "Stored or already stored"},
						"401": errResponse("Signature missing or invalid"),
						"413": errResponse("Body too large"),
						"422": errResponse("Validation failed"),
						"503": errResponse("Store unavailable"),
					},
				},
			},
			"/messages": map[string]any{
				"get": map[string]any{
					"operationId": "listMessages",
					"summary":     "List stored messages ordered by ts",
					"parameters": []any{
						queryParam("limit", map[string]any{"type": "integer", "minimum": 1, "maximum": store.MaxLimit, "default": store.DefaultLimit}),
						queryParam("offset", map[string]any{"type": "integer", "minimum": 0, "default": 0}),
						queryParam("from", map[string]any{"type": "string"}),
						queryParam("since", map[string]any{"type": "string", "description": "RFC 3339 instant or YYYY-MM-DD (start of day, UTC)"}),
						queryParam("q", map[string]any{"type": "string"}),
					},
					"responses": map[string]any{
						"200": map[string]any{"description": "A page of messages"},
						"422": errResponse("Invalid query parameters"),
						"503": errResponse("Store unavailable"),
					},
				},
			},
			"/stats": map[string]any{
				"get": map[string]any{
					"operationId": "getStats",
					"summary":     "Aggregate statistics",
					"responses": map[string]any{
						"200": map[string]any{"description": "Statistics"},
						"503": errResponse("Store unavailable"),
					},
				},
			},
			"/health/live": map[string]any{
				"get": map[string]any{
					"operationId": "live",
					"responses":   map[string]any{"200": map[string]any{"description": "Process is up"}},
				},
			},
			"/health/ready": map[string]any{
				"get": map[string]any{
					"operationId": "ready",
					"responses": map[string]any{
						"200": map[string]any{"description": "Secret configured and store reachable"},
						"503": map[string]any{"description": "Not ready"},
					},
				},
			},
		},
		"components": map[string]any{
			"schemas": map[string]any{
				"MessageIn": map[string]any{
					"type":     "object",
					"required": []string{"message_id", "from", "to", "ts"},
					"properties": map[string]any{
						"message_id": map[string]any{"type": "string", "minLength": 1},
						"from":       map[string]any{"type": "string", "pattern": `^\+[0-9]+$`},
						"to":         map[string]any{"type": "string", "pattern": `^\+[0-9]+$`},
						"ts":         map[string]any{"type": "string", "format": "date-time", "pattern": "Z$"},
						"text":       map[string]any{"type": []string{"string", "null"}, "maxLength": message.MaxTextLength},
					},
				},
				"Error": map[string]any{
					"type":     "object",
					"required": []string{"error"},
					"properties": map[string]any{
						"error": map[string]any{"type": "string"},
						"fields": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"field":   map[string]any{"type": "string"},
									"message": map[string]any{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
	}
}

func queryParam(name string, schema map[string]any) map[string]any {
	return map[string]any{
		"name":     name,
		"in":       "query",
		"required": false,
		"schema":   schema,
	}
}
