// Package docs registers the OpenAPI document served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/ping": {
            "get": {
                "produces": ["text/plain"],
                "tags": ["ping"],
                "summary": "Liveness check",
                "responses": {
                    "200": {"description": "Pong", "schema": {"type": "string"}}
                }
            }
        },
        "/api/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ping"],
                "summary": "Database reachability",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.Health"}},
                    "503": {"description": "Database unreachable", "schema": {"$ref": "#/definitions/server.Health"}}
                }
            }
        },
        "/api/schema": {
            "get": {
                "produces": ["application/json"],
                "tags": ["schema"],
                "summary": "Current and expected schema version",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/migration.Status"}},
                    "500": {"description": "Migration state cannot be read", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/api/schema/history": {
            "get": {
                "produces": ["application/json"],
                "tags": ["schema"],
                "summary": "Applied migration scripts, newest first",
                "parameters": [
                    {"type": "integer", "description": "Maximum rows (default 100)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.SchemaVersion"}}},
                    "400": {"description": "Invalid limit", "schema": {"$ref": "#/definitions/server.ErrorResponse"}},
                    "501": {"description": "History not available for this driver", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "migration.Script": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "path": {"type": "string"},
                "version": {"type": "integer"}
            }
        },
        "migration.Status": {
            "type": "object",
            "properties": {
                "pending": {"type": "array", "items": {"$ref": "#/definitions/migration.Script"}},
                "current_version": {"type": "integer"},
                "expected_version": {"type": "integer"},
                "initialized": {"type": "boolean"},
                "up_to_date": {"type": "boolean"},
                "ahead": {"type": "boolean"}
            }
        },
        "models.SchemaVersion": {
            "type": "object",
            "properties": {
                "version": {"type": "integer"},
                "file_name": {"type": "string"},
                "update_date": {"type": "string", "format": "date-time"}
            }
        },
        "server.Health": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "driver": {"type": "string"},
                "history": {"type": "string"},
                "error": {"type": "string"},
                "schema_check": {"$ref": "#/definitions/maintenance.Stats"}
            }
        },
        "maintenance.Stats": {
            "type": "object",
            "properties": {
                "last_run": {"type": "string", "format": "date-time"},
                "last_error": {"type": "string"},
                "last_duration_ns": {"type": "integer"},
                "runs": {"type": "integer"},
                "failures": {"type": "integer"},
                "up_to_date": {"type": "boolean"}
            }
        },
        "server.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "wishare API",
	Description:      "Schema version status of the wishare database.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
