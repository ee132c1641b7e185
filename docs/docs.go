// Package docs registers the OpenAPI description served at /swagger.
// Regenerate with `swag init -g internal/http/router.go` after changing
// handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/reflections": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Reflections"],
                "summary": "List cached reflections (paginated)",
                "operationId": "listReflections",
                "parameters": [
                    {"type": "string", "description": "Return 304 if ETag matches", "name": "If-None-Match", "in": "header"},
                    {"minimum": 1, "type": "integer", "default": 1, "description": "Page number", "name": "page", "in": "query"},
                    {"maximum": 100, "minimum": 1, "type": "integer", "default": 20, "description": "Items per page", "name": "page_size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListReflectionsResponse"}, "headers": {"ETag": {"type": "string", "description": "Weak ETag for current result"}}},
                    "304": {"description": "Not Modified"},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Reflections"],
                "summary": "Cache a reflection",
                "operationId": "createReflection",
                "parameters": [
                    {"description": "Reflection", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ReflectionRequest"}}
                ],
                "responses": {
                    "200": {"description": "Already cached", "schema": {"$ref": "#/definitions/domain.Reflection"}},
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/domain.Reflection"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/reflections/{date}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Reflections"],
                "summary": "Get a cached reflection",
                "operationId": "getReflection",
                "parameters": [{"type": "string", "description": "Date", "name": "date", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Reflection"}},
                    "400": {"description": "Invalid date", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Not cached", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "put": {
                "consumes": ["application/json"],
                "tags": ["Reflections"],
                "summary": "Overwrite a cached reflection",
                "operationId": "updateReflection",
                "parameters": [
                    {"type": "string", "description": "Date", "name": "date", "in": "path", "required": true},
                    {"description": "New content", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ReflectionRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not cached", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "delete": {
                "tags": ["Reflections"],
                "summary": "Remove a cached reflection",
                "operationId": "deleteReflection",
                "parameters": [{"type": "string", "description": "Date", "name": "date", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not cached", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/backfill": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Backfill the reflection cache",
                "operationId": "startBackfill",
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/handlers.BackfillAccepted"}},
                    "409": {"description": "Already running", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "503": {"description": "Backfill unavailable", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/deliveries": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "List recent delivery runs",
                "operationId": "listDeliveries",
                "parameters": [
                    {"type": "integer", "minimum": 1, "maximum": 100, "default": 20, "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListDeliveriesResponse"}},
                    "503": {"description": "Delivery log unavailable", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.Reflection": {
            "type": "object",
            "properties": {
                "date_string": {"type": "string"},
                "month_day": {"type": "string"},
                "title": {"type": "string"},
                "reflection": {"type": "string"},
                "quote_text": {"type": "string"},
                "page_number": {"type": "integer"},
                "book_name": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "domain.DeliveryRun": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "key": {"type": "string"},
                "date_string": {"type": "string"},
                "targets": {"type": "integer"},
                "succeeded": {"type": "integer"},
                "status": {"type": "string", "enum": ["completed", "failed"]},
                "results": {"type": "string"},
                "created_at": {"type": "string"},
                "expires_at": {"type": "string"}
            }
        },
        "handlers.ListDeliveriesResponse": {
            "type": "object",
            "properties": {
                "runs": {"type": "array", "items": {"$ref": "#/definitions/domain.DeliveryRun"}}
            }
        },
        "handlers.ReflectionRequest": {
            "type": "object",
            "properties": {
                "date": {"type": "string", "example": "01-05"},
                "title": {"type": "string"},
                "reflection": {"type": "string"},
                "quote_text": {"type": "string"},
                "page_number": {"type": "integer", "minimum": 1},
                "book_name": {"type": "string"}
            }
        },
        "handlers.Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total": {"type": "integer"},
                "total_pages": {"type": "integer"},
                "has_next": {"type": "boolean"}
            }
        },
        "handlers.ListReflectionsResponse": {
            "type": "object",
            "properties": {
                "reflections": {"type": "array", "items": {"$ref": "#/definitions/domain.Reflection"}},
                "pagination": {"$ref": "#/definitions/handlers.Pagination"}
            }
        },
        "handlers.BackfillAccepted": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "task_id": {"type": "string"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string"},
                "code": {"type": "string", "example": "not_found"},
                "message": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Daily Reflections Bot API",
	Description:      "Reflection cache, scheduled delivery, and Discord interaction endpoints.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
