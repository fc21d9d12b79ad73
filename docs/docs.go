// Package docs registers the OpenAPI description served at /swagger.
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
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/health": {
            "get": {
                "tags": ["health"],
                "summary": "Readiness probe",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK"},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/runs": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["runs"],
                "summary": "Start an ingestion run",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "file", "description": "page images in order", "name": "pages", "in": "formData"},
                    {"type": "file", "description": "a PDF document", "name": "file", "in": "formData"}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/handler.startRunResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/runs/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["runs"],
                "summary": "Run status",
                "produces": ["application/json"],
                "parameters": [{"type": "string", "description": "run id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.RunStatus"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/reports": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["reports"],
                "summary": "List reports",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "integer", "default": 20, "description": "page size", "name": "limit", "in": "query"},
                    {"type": "integer", "default": 0, "description": "offset", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/service.ReportListResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/reports/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["reports"],
                "summary": "Get report",
                "produces": ["application/json"],
                "parameters": [{"type": "integer", "description": "report id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.ReportRecord"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        }
    },
    "definitions": {
        "handler.errorEnvelope": {
            "type": "object",
            "properties": {"code": {"type": "string"}, "message": {"type": "string"}}
        },
        "handler.errorPayload": {
            "type": "object",
            "properties": {"error": {"$ref": "#/definitions/handler.errorEnvelope"}, "request_id": {"type": "string"}}
        },
        "handler.startRunResponse": {
            "type": "object",
            "properties": {"run_id": {"type": "string"}}
        },
        "model.Clause": {
            "type": "object",
            "properties": {"text": {"type": "string"}, "title": {"type": "string"}}
        },
        "model.StructuredReport": {
            "type": "object",
            "properties": {
                "clauses": {"type": "array", "items": {"$ref": "#/definitions/model.Clause"}},
                "document_type": {"type": "string"},
                "important_dates": {"type": "array", "items": {"type": "string"}},
                "parties": {"type": "array", "items": {"type": "string"}},
                "signatories": {"type": "array", "items": {"type": "string"}},
                "summary": {"type": "string"}
            }
        },
        "model.ReportRecord": {
            "type": "object",
            "properties": {
                "created_at": {"type": "string"},
                "fileLink": {"type": "string"},
                "id": {"type": "integer"},
                "report": {"$ref": "#/definitions/model.StructuredReport"},
                "userId": {"type": "string"}
            }
        },
        "model.RunStatus": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "failed_at": {"type": "string"},
                "fileLink": {"type": "string"},
                "message": {"type": "string"},
                "progress": {"type": "number"},
                "record_id": {"type": "integer"},
                "report": {"$ref": "#/definitions/model.StructuredReport"},
                "run_id": {"type": "string"},
                "stage": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "service.ReportListResult": {
            "type": "object",
            "properties": {
                "data": {"type": "array", "items": {"$ref": "#/definitions/model.ReportRecord"}},
                "total": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "LegalEase Ingestion API",
	Description:      "Scan or pick a legal document, analyse it and keep the structured report.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
