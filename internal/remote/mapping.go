package remote

import (
	"encoding/json"
	"fmt"

	"github.com/DanielZivko/daily-habits/internal/model"
)

// FieldMap is an explicit bidirectional mapping between local field
// names (camelCase, as serialized by the model package) and remote
// column names (snake_case). Translation always goes through one of
// these tables rather than ad hoc case conversion, so the wire contract
// per entity is auditable in one place and testable in isolation.
type FieldMap map[string]string

// TaskFields maps task fields to remote columns.
var TaskFields = FieldMap{
	"id":        "id",
	"userId":    "user_id",
	"title":     "title",
	"notes":     "notes",
	"groupId":   "group_id",
	"done":      "done",
	"doneAt":    "done_at",
	"dueAt":     "due_at",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

// GroupFields maps group fields to remote columns.
var GroupFields = FieldMap{
	"id":        "id",
	"userId":    "user_id",
	"name":      "name",
	"color":     "color",
	"position":  "position",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

func fieldsForTable(table string) (FieldMap, error) {
	switch table {
	case "tasks":
		return TaskFields, nil
	case "groups":
		return GroupFields, nil
	default:
		return nil, fmt.Errorf("no field mapping for table %q", table)
	}
}

// ToRow translates a local record into its remote representation:
// snake_case columns, RFC 3339 date strings, owning user attached.
// Every mapped column is present in the result (nil when the local
// field is empty) so an upsert replaces the full row rather than
// merging into stale remote fields.
func ToRow(table string, rec model.Record) (map[string]any, error) {
	fields, err := fieldsForTable(table)
	if err != nil {
		return nil, err
	}
	if rec.Owner() == "" {
		return nil, fmt.Errorf("record %s has no owning user", rec.PrimaryKey())
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record %s: %w", rec.PrimaryKey(), err)
	}
	var local map[string]any
	if err := json.Unmarshal(data, &local); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", rec.PrimaryKey(), err)
	}

	row := make(map[string]any, len(fields))
	for name, value := range local {
		column, ok := fields[name]
		if !ok {
			return nil, fmt.Errorf("field %q of table %s has no remote column", name, table)
		}
		row[column] = value
	}
	// Fields dropped by omitempty still map to explicit nulls.
	for _, column := range fields {
		if _, ok := row[column]; !ok {
			row[column] = nil
		}
	}
	return row, nil
}

// FromRow translates a remote row back into a local record. Remote
// columns with no local mapping are ignored (the server may carry
// columns this client does not know about). The result is validated;
// a row failing validation is malformed and should be skipped by the
// caller, not applied.
func FromRow(table string, row map[string]any) (model.Record, error) {
	fields, err := fieldsForTable(table)
	if err != nil {
		return nil, err
	}

	local := make(map[string]any, len(fields))
	for name, column := range fields {
		if value, ok := row[column]; ok && value != nil {
			local[name] = value
		}
	}

	data, err := json.Marshal(local)
	if err != nil {
		return nil, fmt.Errorf("failed to encode row: %w", err)
	}

	var rec model.Record
	switch table {
	case "tasks":
		var task model.Task
		if err := json.Unmarshal(data, &task); err != nil {
			return nil, fmt.Errorf("malformed task row: %w", err)
		}
		rec = &task
	case "groups":
		var group model.Group
		if err := json.Unmarshal(data, &group); err != nil {
			return nil, fmt.Errorf("malformed group row: %w", err)
		}
		rec = &group
	}

	type validator interface{ Validate() error }
	if v, ok := rec.(validator); ok {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("malformed %s row: %w", table, err)
		}
	}
	return rec, nil
}
