package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Event Calendar API",
        "description": "Recurring events, per-occurrence overrides and iCalendar feeds for multi-tenant spaces.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Occurrences", "description": "Materialized occurrences of event series"},
        {"name": "Events", "description": "Event series and this-and-following edits"},
        {"name": "Overrides", "description": "Per-occurrence exceptions"},
        {"name": "Feeds", "description": "iCalendar feeds and agenda exports"}
    ],
    "paths": {
        "/occurrences": {
            "get": {
                "tags": ["Occurrences"],
                "summary": "List occurrences in a window",
                "parameters": [
                    {"name": "space_id", "in": "query", "type": "array", "items": {"type": "string"}, "collectionFormat": "multi"},
                    {"name": "event_type_id", "in": "query", "type": "array", "items": {"type": "string"}, "collectionFormat": "multi"},
                    {"name": "event_id", "in": "query", "type": "array", "items": {"type": "string"}, "collectionFormat": "multi"},
                    {"name": "start", "in": "query", "type": "string", "format": "date-time", "required": true},
                    {"name": "end", "in": "query", "type": "string", "format": "date-time", "required": true},
                    {"name": "include_excluded", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid or unbounded window", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/events": {
            "post": {
                "tags": ["Events"],
                "summary": "Create event series",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateSeriesRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Invalid recurrence rule", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/events/{id}": {
            "get": {
                "tags": ["Events"],
                "summary": "Get event series",
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Events"],
                "summary": "Update the whole event series",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/events/{id}/next": {
            "get": {
                "tags": ["Occurrences"],
                "summary": "Next upcoming occurrence",
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No upcoming occurrence", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/events/{id}/split": {
            "post": {
                "tags": ["Events"],
                "summary": "Edit this and following occurrences",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SplitRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/events/{id}/occurrences/{date}/override": {
            "put": {
                "tags": ["Overrides"],
                "summary": "Create or patch an occurrence override",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "date", "in": "path", "type": "string", "required": true, "description": "YYYY-MM-DD"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/OverrideRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not an occurrence of the event", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Occurrence is excluded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Overrides"],
                "summary": "Remove an occurrence override",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "date", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "Removed"},
                    "404": {"description": "No override", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/events/{id}/occurrences/{date}": {
            "delete": {
                "tags": ["Overrides"],
                "summary": "Delete one occurrence",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "date", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/feeds/{space_id}": {
            "get": {
                "tags": ["Feeds"],
                "summary": "iCalendar subscription feed of a space",
                "produces": ["text/calendar"],
                "parameters": [{"name": "space_id", "in": "path", "type": "string", "required": true}],
                "responses": {"200": {"description": "text/calendar"}}
            }
        },
        "/exports/occurrences": {
            "get": {
                "tags": ["Feeds"],
                "summary": "Export occurrences as CSV or PDF agenda",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "start", "in": "query", "type": "string", "format": "date-time", "required": true},
                    {"name": "end", "in": "query", "type": "string", "format": "date-time", "required": true},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {"200": {"description": "Agenda file"}}
            }
        }
    },
    "definitions": {
        "CreateSeriesRequest": {
            "type": "object",
            "required": ["space_id", "event_type_id", "summary", "dtstart"],
            "properties": {
                "space_id": {"type": "string"},
                "event_type_id": {"type": "string"},
                "summary": {"type": "string"},
                "description": {"type": "string"},
                "url": {"type": "string"},
                "location": {"type": "string"},
                "dtstart": {"type": "string", "format": "date-time"},
                "dtend": {"type": "string", "format": "date-time"},
                "all_day": {"type": "boolean"},
                "timezone": {"type": "string"},
                "rrule": {"type": "string", "example": "FREQ=WEEKLY;BYDAY=TU"},
                "recurrence_end_date": {"type": "string", "format": "date-time"},
                "exdates": {"type": "array", "items": {"type": "string"}},
                "status": {"type": "string", "enum": ["tentative", "confirmed", "cancelled"]},
                "draft": {"type": "boolean"},
                "internal": {"type": "boolean"}
            }
        },
        "OverrideRequest": {
            "type": "object",
            "properties": {
                "summary": {"type": "string"},
                "description": {"type": "string"},
                "url": {"type": "string"},
                "location": {"type": "string"},
                "dtstart": {"type": "string", "format": "date-time"},
                "dtend": {"type": "string", "format": "date-time"},
                "status": {"type": "string", "enum": ["tentative", "confirmed", "cancelled"]},
                "notes": {"type": "string"}
            }
        },
        "SplitRequest": {
            "type": "object",
            "required": ["split_at"],
            "properties": {
                "split_at": {"type": "string", "format": "date-time"},
                "summary": {"type": "string"},
                "description": {"type": "string"},
                "url": {"type": "string"},
                "location": {"type": "string"},
                "status": {"type": "string"},
                "rrule": {"type": "string"},
                "start_time": {"type": "string", "example": "18:30"},
                "duration_minutes": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
