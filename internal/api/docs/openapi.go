// Package docs holds the OpenAPI description served at /openapi.json.
package docs

// Spec returns the OpenAPI 3 document for the ticket API.
func Spec(serviceName, version string) map[string]any {
	ticketRef := map[string]any{"$ref": "#/components/schemas/Ticket"}
	enum := func(values ...string) map[string]any {
		vals := make([]any, len(values))
		for i, v := range values {
			vals[i] = v
		}
		return map[string]any{"type": "string", "enum": vals}
	}

	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   serviceName,
			"version": version,
		},
		"paths": map[string]any{
			"/tickets": map[string]any{
				"post": map[string]any{
					"tags":    []any{"Tickets"},
					"summary": "Create a ticket",
					"requestBody": map[string]any{
						"required": true,
						"content": map[string]any{"application/json": map[string]any{
							"schema": map[string]any{"$ref": "#/components/schemas/CreateTicket"},
						}},
					},
					"responses": map[string]any{
						"201": map[string]any{"description": "Created"},
						"400": map[string]any{"description": "Validation failed"},
					},
				},
				"get": map[string]any{
					"tags":    []any{"Tickets"},
					"summary": "List tickets",
					"parameters": []any{
						queryParam("status", "Comma-separated statuses"),
						queryParam("priority", "Comma-separated priorities"),
						queryParam("type", "Comma-separated request types"),
						queryParam("building", "Exact building match"),
						queryParam("requester_id", "Requester filter"),
						queryParam("limit", "Page size, default 50"),
						queryParam("offset", "Page offset, default 0"),
					},
					"responses": map[string]any{"200": map[string]any{"description": "OK"}},
				},
			},
			"/tickets/{id}": map[string]any{
				"get": map[string]any{
					"tags":       []any{"Tickets"},
					"summary":    "Get ticket by id",
					"parameters": []any{pathParam("id")},
					"responses": map[string]any{
						"200": map[string]any{"description": "OK"},
						"404": map[string]any{"description": "Ticket not found"},
					},
				},
				"patch": map[string]any{
					"tags":       []any{"Tickets"},
					"summary":    "Update a ticket; status may only advance to its successor",
					"parameters": []any{pathParam("id")},
					"responses": map[string]any{
						"200": map[string]any{"description": "OK"},
						"400": map[string]any{"description": "Validation failed or invalid transition"},
						"404": map[string]any{"description": "Ticket not found"},
						"409": map[string]any{"description": "Concurrent modification"},
					},
				},
				"delete": map[string]any{
					"tags":       []any{"Tickets"},
					"summary":    "Soft-delete a ticket",
					"parameters": []any{pathParam("id")},
					"responses": map[string]any{
						"204": map[string]any{"description": "Deleted"},
						"404": map[string]any{"description": "Ticket not found"},
					},
				},
			},
			"/tickets/{id}/escalate": map[string]any{
				"post": map[string]any{
					"tags":       []any{"Tickets"},
					"summary":    "Escalate a ticket to another support level",
					"parameters": []any{pathParam("id")},
					"responses": map[string]any{
						"200": map[string]any{"description": "OK"},
						"404": map[string]any{"description": "Ticket not found"},
						"409": map[string]any{"description": "Ticket closed"},
					},
				},
			},
			"/tickets/{id}/escalations": map[string]any{
				"get": map[string]any{
					"tags":       []any{"Tickets"},
					"summary":    "Escalation history",
					"parameters": []any{pathParam("id")},
					"responses":  map[string]any{"200": map[string]any{"description": "OK"}},
				},
			},
			"/tickets/requester/{requesterId}": map[string]any{
				"get": map[string]any{
					"tags":       []any{"Tickets"},
					"summary":    "List tickets by requester",
					"parameters": []any{pathParam("requesterId")},
					"responses":  map[string]any{"200": map[string]any{"description": "OK"}},
				},
			},
			"/health/live":  map[string]any{"get": map[string]any{"tags": []any{"Health"}, "summary": "Liveness probe", "responses": map[string]any{"200": map[string]any{"description": "Alive"}}}},
			"/health/ready": map[string]any{"get": map[string]any{"tags": []any{"Health"}, "summary": "Readiness probe", "responses": map[string]any{"200": map[string]any{"description": "Ready"}, "503": map[string]any{"description": "Degraded"}}}},
		},
		"components": map[string]any{
			"schemas": map[string]any{
				"CreateTicket": map[string]any{
					"type":     "object",
					"required": []any{"title", "description", "type_of_request", "building", "room", "requester_id"},
					"properties": map[string]any{
						"title":           map[string]any{"type": "string", "minLength": 3},
						"description":     map[string]any{"type": "string", "minLength": 5},
						"type_of_request": enum("INCIDENT", "SERVICE_REQUEST", "MAINTENANCE"),
						"building":        map[string]any{"type": "string"},
						"room":            map[string]any{"type": "string"},
						"requester_id":    map[string]any{"type": "string", "format": "uuid"},
					},
				},
				"Ticket": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":                map[string]any{"type": "string", "format": "uuid"},
						"title":             map[string]any{"type": "string"},
						"description":       map[string]any{"type": "string"},
						"type_of_request":   enum("INCIDENT", "SERVICE_REQUEST", "MAINTENANCE"),
						"building":          map[string]any{"type": "string"},
						"room":              map[string]any{"type": "string"},
						"requester_id":      map[string]any{"type": "string", "format": "uuid"},
						"status":            enum("OPEN", "IN_PROGRESS", "RESOLVED", "CLOSED"),
						"priority":          enum("LOW", "MEDIUM", "HIGH"),
						"assigned_to_level": enum("L1", "L2", "L3", "L4"),
						"escalation_count":  map[string]any{"type": "integer", "minimum": 0},
						"closed_at":         map[string]any{"type": "string", "format": "date-time", "nullable": true},
					},
				},
				"TicketEnvelope": map[string]any{
					"type":        "object",
					"description": "Broker message published to the ticket.events exchange",
					"properties": map[string]any{
						"eventType":  enum("ticket.created", "ticket.updated"),
						"occurredAt": map[string]any{"type": "string", "format": "date-time"},
						"data":       ticketRef,
					},
				},
			},
		},
	}
}

func pathParam(name string) map[string]any {
	return map[string]any{
		"name":     name,
		"in":       "path",
		"required": true,
		"schema":   map[string]any{"type": "string"},
	}
}

func queryParam(name, description string) map[string]any {
	return map[string]any{
		"name":        name,
		"in":          "query",
		"description": description,
		"schema":      map[string]any{"type": "string"},
	}
}
