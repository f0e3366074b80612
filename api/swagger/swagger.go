package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "ClassWatch API",
        "description": "Classroom wearable event engine: attendance check-ins, focus analytics and emergency alerts",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Attendance", "description": "NFC check-in and checkout lifecycle"},
        {"name": "Analytics", "description": "Focus session ingestion and aggregation"},
        {"name": "Emergency", "description": "Emergency alert lifecycle"}
    ],
    "paths": {
        "/attendance/mark": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Admit a check-in event",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MarkAttendanceRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid token or duplicate check-in", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/checkout": {
            "put": {
                "tags": ["Attendance"],
                "summary": "Stamp check-out time exactly once",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CheckoutRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already checked out", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/student/{studentId}": {
            "get": {
                "tags": ["Attendance"],
                "summary": "List a student's attendance records",
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "date_from", "in": "query", "type": "string"},
                    {"name": "date_to", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Student not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/class/{classId}": {
            "get": {
                "tags": ["Attendance"],
                "summary": "List a class's records with status breakdown",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "date_from", "in": "query", "type": "string"},
                    {"name": "date_to", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/class/{classId}/export": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Download the class attendance report",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Report file"}
                }
            }
        },
        "/analytics/session": {
            "post": {
                "tags": ["Analytics"],
                "summary": "Score and store one sensor snapshot",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecordSessionRequest"}}
                ],
                "responses": {
                    "200": {"description": "Scored session", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "500": {"description": "Scoring engine failure", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/analytics/student/{studentId}": {
            "get": {
                "tags": ["Analytics"],
                "summary": "Student focus sessions and trend summary",
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "date_from", "in": "query", "type": "string"},
                    {"name": "date_to", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/analytics/class/{classId}": {
            "get": {
                "tags": ["Analytics"],
                "summary": "Class focus sessions with engagement metrics",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "date", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/analytics/trends/{studentId}": {
            "get": {
                "tags": ["Analytics"],
                "summary": "Student trend summary over a period",
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "period_days", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/analytics/dashboard": {
            "get": {
                "tags": ["Analytics"],
                "summary": "Organisation-wide daily view",
                "parameters": [
                    {"name": "date", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/emergency/alert": {
            "post": {
                "tags": ["Emergency"],
                "summary": "Raise an emergency alert",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RaiseAlertRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/emergency/active": {
            "get": {
                "tags": ["Emergency"],
                "summary": "List unresolved alerts",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/emergency/{alertId}/status": {
            "patch": {
                "tags": ["Emergency"],
                "summary": "Advance an alert through its lifecycle",
                "parameters": [
                    {"name": "alertId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateAlertStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid transition", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "MarkAttendanceRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "class_id": {"type": "string"},
                "check_in_time": {"type": "string"},
                "presence_token": {"type": "string"},
                "device_tag": {"type": "string"},
                "location": {"type": "string"}
            },
            "required": ["student_id", "class_id", "presence_token"]
        },
        "CheckoutRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "class_id": {"type": "string"},
                "check_in_time": {"type": "string"},
                "check_out_time": {"type": "string"}
            },
            "required": ["student_id", "class_id", "check_in_time"]
        },
        "RecordSessionRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "class_id": {"type": "string"},
                "sensor_snapshot": {"type": "object"}
            },
            "required": ["student_id", "class_id", "sensor_snapshot"]
        },
        "RaiseAlertRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "alert_type": {"type": "string", "enum": ["SOS", "MEDICAL", "FIRE"]},
                "location": {"type": "string"},
                "coordinates": {"$ref": "#/definitions/GPSCoordinates"}
            },
            "required": ["student_id", "alert_type"]
        },
        "UpdateAlertStatusRequest": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["acknowledged", "resolved"]}
            },
            "required": ["status"]
        },
        "GPSCoordinates": {
            "type": "object",
            "properties": {
                "latitude": {"type": "number"},
                "longitude": {"type": "number"}
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
                "pagination": {"type": "object"},
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
